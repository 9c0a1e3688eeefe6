package core

// Event names carried in the "type" field of every frame.
const (
	EventConnected     = "connected"
	EventAuthenticate  = "authenticate"
	EventAuthenticated = "authenticated"
	EventWhoAmI        = "whoami"
	EventPing          = "ping"
	EventPong          = "pong"
	EventAck           = "ack"
	EventError         = "error"

	EventJoinGroup   = "join-group"
	EventGroupJoined = "group-joined"
	EventLeaveGroup  = "leave-group"
	EventGroupLeft   = "group-left"

	EventJoinRoom   = "join-room"
	EventRoomJoined = "room-joined"
	EventLeaveRoom  = "leave-room"
	EventRoomLeft   = "room-left"

	EventSendChat    = "send-chat-message"
	EventReceiveChat = "receive-chat-message"

	EventCallError    = "call-error"
	EventMessageError = "message-error"
)

package domain

import "strings"

const (
	groupRoomPrefix = "group-"
	callRoomPrefix  = "call-"

	MaxRoomNameLen = 64
)

type (
	GroupID string
	RoomID  string
)

// GroupRoom derives the broadcast room for a chat group.
func GroupRoom(g GroupID) RoomID {
	return RoomID(groupRoomPrefix + string(g))
}

// CallRoom derives the room a call's peers signal each other through. The
// prefix keeps call names from colliding with group rooms.
func CallRoom(name string) RoomID {
	return RoomID(callRoomPrefix + name)
}

// CallRoomName is the name a client used for a call room.
func CallRoomName(id RoomID) string {
	return strings.TrimPrefix(string(id), callRoomPrefix)
}

// Room is a group room when Group is set and a call room otherwise.
type Room struct {
	ID    RoomID
	Group GroupID
}

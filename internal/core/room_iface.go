package core

import (
	"github.com/dkeye/Huddle/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	Members() []ConnID

	AddMember(sid ConnID, ms MemberSession)
	RemoveMember(sid ConnID)
	HasMember(sid ConnID) bool
	Broadcast(from ConnID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID  `json:"id"`
	Group       domain.GroupID `json:"group,omitempty"`
	MemberCount int            `json:"client_count"`
}

type RoomManager interface {
	GetOrCreate(group domain.GroupID) RoomService
	// Open returns the room with room.ID, creating it from room if needed.
	Open(room domain.Room) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	// StopRoomIfEmpty drops the room when nobody is left in it.
	StopRoomIfEmpty(id domain.RoomID) bool
}

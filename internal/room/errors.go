package room

import "github.com/rx3lixir/bookclub/pkg/apperr"

var (
	ErrRoomNotFound   = apperr.NotFound("ROOM_NOT_FOUND", "room not found")
	ErrMemberNotFound = apperr.NotFound("MEMBER_NOT_FOUND", "member not found")
	ErrRoundNotFound  = apperr.NotFound("ROUND_NOT_FOUND", "no open round")

	ErrNotWaiting          = apperr.Conflict("NOT_WAITING", "room is not waiting for members")
	ErrNotChatting         = apperr.Conflict("NOT_CHATTING", "room is not chatting")
	ErrRoomClosed          = apperr.Conflict("ROOM_CLOSED", "room is already closed")
	ErrCapacityFull        = apperr.Conflict("CAPACITY_FULL", "room is full")
	ErrPositionFull        = apperr.Conflict("POSITION_FULL", "no seats left for this position")
	ErrInsufficientMembers = apperr.Conflict("INSUFFICIENT_MEMBERS", "the opposing side has no members")
	ErrMaxRoundReached     = apperr.Conflict("MAX_ROUND_REACHED", "already on the last round")
	ErrNotLastRound        = apperr.Conflict("NOT_LAST_ROUND", "room can only end on its last round")
	ErrHostCannotLeave     = apperr.Conflict("HOST_CANNOT_LEAVE", "host cannot leave, cancel the room instead")
	ErrMemberBusy          = apperr.Conflict("MEMBER_BUSY", "member status keeps changing, try again")

	ErrNotHost = apperr.Forbidden("FORBIDDEN", "only the host can do this")

	ErrInvalidPosition = apperr.Invalid("INVALID_POSITION", "position must be AGREE or DISAGREE")
)

func invalidRoom(msg string) error {
	return apperr.Invalid("INVALID_ROOM", msg)
}

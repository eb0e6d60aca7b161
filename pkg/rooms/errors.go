package rooms

type ErrRoomNotFound struct {
}

func (e *ErrRoomNotFound) Error() string {
	return "room not found"
}

func IsRoomNotFound(err error) bool {
	_, ok := err.(*ErrRoomNotFound)
	return ok
}

type ErrInsufficientPlayers struct {
}

func (e *ErrInsufficientPlayers) Error() string {
	return "not enough players"
}

func IsInsufficientPlayers(err error) bool {
	_, ok := err.(*ErrInsufficientPlayers)
	return ok
}

package constraint

import "errors"

var (
	// ErrRegistered indicates a topology change on a group that is in the arena.
	ErrRegistered = errors.New("constraint: group is registered, remove it from the arena first")

	ErrAlreadyRegistered = errors.New("constraint: group already registered")

	ErrActorNotInArena = errors.New("constraint: owning actor is not in the arena")

	ErrIndexOutOfRange = errors.New("constraint: index out of range")
)

// internal/game/errors.go
package game

import "errors"

var (
	ErrMatchNotStarted    = errors.New("match has not started")
	ErrMatchOver          = errors.New("match is over")
	ErrMatchNotRegistered = errors.New("match is not registered")
	ErrNotAuthorized      = errors.New("player may not act in the current phase")
	ErrInvalidTurnOrder   = errors.New("invalid turn order")
	ErrPlayerNotFound     = errors.New("player not found in match")
	ErrNoCurrentPhase     = errors.New("match has no current phase")
)

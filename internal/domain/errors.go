package domain

import (
	"errors"
	"fmt"
)

// Четыре вида ожидаемых ошибок. Вызывающий классифицирует через errors.Is
var (
	ErrGameNotFound        = errors.New("game not found")
	ErrInvalidGameState    = errors.New("invalid game state")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

var (
	ErrSessionNotFound = fmt.Errorf("%w: game session not found", ErrGameNotFound)
	ErrRoundNotFound   = fmt.Errorf("%w: round not found", ErrGameNotFound)

	ErrSessionNotActive    = fmt.Errorf("%w: game session is not active", ErrInvalidGameState)
	ErrAlreadyChosen       = fmt.Errorf("%w: player has already made a choice for this round", ErrInvalidGameState)
	ErrMaxRoundsReached    = fmt.Errorf("%w: maximum number of rounds has been reached", ErrInvalidGameState)
	ErrSessionAlreadyEnded = fmt.Errorf("%w: game session is already completed", ErrInvalidGameState)

	ErrWrongRound         = fmt.Errorf("%w: invalid round number", ErrInvalidRequest)
	ErrPlayerNotInSession = fmt.Errorf("%w: player not found in this session", ErrInvalidRequest)
	ErrInvalidChoice      = fmt.Errorf("%w: choice must be Cooperate or Defect", ErrInvalidRequest)
	ErrInvalidPlayerName  = fmt.Errorf("%w: player name must be 1-100 characters", ErrInvalidRequest)
	ErrInvalidPlayerID    = fmt.Errorf("%w: player id must be a valid non-empty uuid", ErrInvalidRequest)
	ErrInvalidSessionID   = fmt.Errorf("%w: session id must be a valid non-empty uuid", ErrInvalidRequest)
)

// IsExpected - ошибка из таксономии, а не внутренний сбой
func IsExpected(err error) bool {
	return errors.Is(err, ErrGameNotFound) ||
		errors.Is(err, ErrInvalidGameState) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrConcurrencyConflict)
}

package consultation

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidState    = errors.New("invalid session state")
	ErrEmptyCondition  = errors.New("initial condition is required")
	ErrEmptyAnswer     = errors.New("answer is required")

	ErrSessionComplete   = fmt.Errorf("%w: session is already complete", ErrInvalidState)
	ErrNoPendingQuestion = fmt.Errorf("%w: no question is awaiting an answer", ErrInvalidState)
)

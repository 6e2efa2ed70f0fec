package battle

import (
	"errors"
	"fmt"
)

var (
	ErrBattleNotEnded = errors.New("battle has not ended")
	ErrSettlementTie  = errors.New("battle ended in an exact tie")
)

// DecodeError reports account data that cannot be read as a battle
// account, usually because the buffer is shorter than the layout.
type DecodeError struct {
	Field string
	Got   int
	Want  int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode battle account: %s: got %d bytes, want at least %d", e.Field, e.Got, e.Want)
}

// ReconstructionError wraps a failed history-page fetch. A partial
// walk would undercount volume silently, so the whole walk fails
// instead of returning partial sums.
type ReconstructionError struct {
	Page int
	Err  error
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("history reconstruction failed on page %d: %v", e.Page, e.Err)
}

func (e *ReconstructionError) Unwrap() error { return e.Err }

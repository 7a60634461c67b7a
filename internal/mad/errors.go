package mad

import (
	"errors"
	"fmt"
)

// ErrTruncatedBuffer is returned when fewer bytes remain than a fixed-size
// structure requires.
var ErrTruncatedBuffer = errors.New("truncated buffer")

// TruncatedError records which structure ran out of bytes.
type TruncatedError struct {
	What   string
	Offset int
	Need   int
	Have   int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("%v: %s at offset %d needs %d bytes, have %d", ErrTruncatedBuffer, e.What, e.Offset, e.Need, e.Have)
}

// Is makes errors.Is(err, ErrTruncatedBuffer) hold.
func (e *TruncatedError) Is(target error) bool {
	return target == ErrTruncatedBuffer
}

func checkLen(buf []byte, off, need int, what string) error {
	have := len(buf) - off
	if have < 0 {
		have = 0
	}
	if have < need {
		return &TruncatedError{What: what, Offset: off, Need: need, Have: have}
	}
	return nil
}

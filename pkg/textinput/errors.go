package textinput

import (
	"errors"
	"fmt"
)

var errAllStrategiesFailed = errors.New("all delivery strategies failed")

// verifyError reports a rendered-length mismatch after a strategy claimed
// success.
type verifyError struct {
	want int
	got  int
}

func (e *verifyError) Error() string {
	return fmt.Sprintf("rendered length mismatch: want %d non-whitespace runes, got %d", e.want, e.got)
}

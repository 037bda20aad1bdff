package regex

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMatchTimeout is returned when a pattern exceeds its match time budget
var ErrMatchTimeout = errors.New("regex match timed out")

// InvalidPatternError reports a pattern that failed to compile. Error returns the
// compiler message verbatim so it can be shown to whoever wrote the pattern.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid regex: %v", e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}

// IsInvalidPattern reports whether err is or wraps an InvalidPatternError
func IsInvalidPattern(err error) bool {
	var target *InvalidPatternError
	return errors.As(err, &target)
}

package endpoint

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is wrapped by every batch-level validation failure.
// Nothing is sent to the remote service when planning returns it.
var ErrInvalidArgument = errors.New("argument provided was invalid")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

package framing

import (
	"fmt"

	errors "golang.org/x/xerrors"
)

// ErrMalformedHeader matches every *MalformedHeaderError.
var ErrMalformedHeader = errors.New("malformed packet header")

// MalformedHeaderError reports a header frame that is not a single known type
// tag.
type MalformedHeaderError struct {
	Header []byte
}

func (e *MalformedHeaderError) Error() string {
	if len(e.Header) == 1 {
		return fmt.Sprintf("%v: unknown type tag 0x%02x", ErrMalformedHeader, e.Header[0])
	}
	return fmt.Sprintf("%v: %d byte header", ErrMalformedHeader, len(e.Header))
}

func (e *MalformedHeaderError) Is(target error) bool {
	return target == ErrMalformedHeader
}

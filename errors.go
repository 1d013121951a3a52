package alohacap

import "github.com/pkg/errors"

var (
	// ErrBusy is returned by Open while another device stream is connected.
	ErrBusy = errors.New("a stream is already connected")

	// ErrInvalidToken is returned by Cut for a badge token that is not a
	// non-empty hex string.
	ErrInvalidToken = errors.New("invalid badge token")
)

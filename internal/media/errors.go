//////////////////////////////////////////////////////////////////////////////
//
// Media errors
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import "github.com/pkg/errors"

// ErrFinalize matches every *FinalizeError.
var ErrFinalize = errors.New("failed to finalize audio sink")

// FinalizeError reports a failure to seal the live WAV stream. The live sink
// pair was still replaced, so ingestion can continue.
type FinalizeError struct {
	Err error
}

func (e *FinalizeError) Error() string {
	return ErrFinalize.Error() + ": " + e.Err.Error()
}

func (e *FinalizeError) Unwrap() error { return e.Err }

func (e *FinalizeError) Is(target error) bool { return target == ErrFinalize }

package search

import (
	"context"
	"errors"

	apperrors "tsgate/pkg/errors"
)

func kindOf(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrCancelled.Code
	}
	return apperrors.Kind(err)
}

// guard wraps a goroutine body so a panic becomes a fatal error instead of
// crashing the process, per spec.md section 5's cancellation model: every
// task spawned by the search orchestration (extractors, codec stages,
// merger) is guarded the same way.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.RecoverPanic(r)
			}
		}()
		return fn()
	}
}

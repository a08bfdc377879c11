package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrEmbedding     = errors.New("embedding failure")
	ErrStore         = errors.New("vector store failure")
	ErrAuthExpired   = errors.New("authorization expired")
	ErrProvider      = errors.New("llm provider failure")
	ErrInvalidInput  = errors.New("invalid input")
	ErrTemporary     = errors.New("temporary failure")
	ErrCorpusMissing = errors.New("corpus not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsFatal reports whether err invalidates a whole run rather than one unit of work.
func IsFatal(err error) bool {
	return IsKind(err, ErrConfiguration) || IsKind(err, ErrCorpusMissing)
}

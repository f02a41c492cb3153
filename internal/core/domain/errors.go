package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	ErrUnsupportedInput = errors.New("unsupported input")
	ErrEngineTimeout    = errors.New("engine timeout")
	ErrEngineInternal   = errors.New("engine internal error")
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

type EngineErrorKind string

const (
	EngineErrorUnsupportedInput EngineErrorKind = "UNSUPPORTED_INPUT"
	EngineErrorTimeout          EngineErrorKind = "TIMEOUT"
	EngineErrorInternal         EngineErrorKind = "INTERNAL"
)

// EngineError is the only failure an engine adapter may surface.
type EngineError struct {
	Engine string
	Kind   EngineErrorKind
	Err    error
}

func NewEngineError(engine string, kind EngineErrorKind, err error) *EngineError {
	return &EngineError{Engine: engine, Kind: kind, Err: err}
}

func (e *EngineError) Error() string {
	if e == nil {
		return "engine error"
	}
	if e.Err == nil {
		return fmt.Sprintf("engine %s: %s", e.Engine, e.Kind)
	}
	return fmt.Sprintf("engine %s: %s: %v", e.Engine, e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an EngineError against its kind sentinel.
func (e *EngineError) Is(target error) bool {
	switch target {
	case ErrUnsupportedInput:
		return e.Kind == EngineErrorUnsupportedInput
	case ErrEngineTimeout:
		return e.Kind == EngineErrorTimeout
	case ErrEngineInternal:
		return e.Kind == EngineErrorInternal
	}
	return false
}

// AsEngineError normalizes any error into an EngineError. Foreign errors become INTERNAL.
func AsEngineError(engine string, err error) *EngineError {
	if err == nil {
		return nil
	}
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		if engineErr.Engine == "" {
			return &EngineError{Engine: engine, Kind: engineErr.Kind, Err: engineErr.Err}
		}
		return engineErr
	}
	switch {
	case errors.Is(err, ErrUnsupportedInput):
		return NewEngineError(engine, EngineErrorUnsupportedInput, err)
	case errors.Is(err, ErrEngineTimeout):
		return NewEngineError(engine, EngineErrorTimeout, err)
	default:
		return NewEngineError(engine, EngineErrorInternal, err)
	}
}

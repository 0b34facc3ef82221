package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a configuration error with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Code    string // E2xx, empty for plain CUE evaluation errors
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	prefix := ""
	if e.Code != "" {
		prefix = "[" + e.Code + "] "
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s%s:%d:%d: %s: %s",
			prefix, e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s%s: %s", prefix, e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/toglayer/internal/compiler"
	"github.com/roach88/toglayer/internal/ir"
)

// Load error codes. Configuration errors found by the compiler keep their
// E2xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeStore       = "E007" // Journal database error
)

// LoadResult is a compiled keymap together with the facts the commands
// print about it.
type LoadResult struct {
	Config    *ir.KeymapConfig
	Hash      string
	FileCount int
}

// LoadError represents an error that occurred while loading a config dir.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadConfig loads, compiles and validates the keymap in dir. Directory
// and CUE problems come back as a single *LoadError; a compiled config
// that fails validation returns every compiler.ValidationError found.
func LoadConfig(dir string) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := compiler.FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, err := compiler.BuildDir(dir)
	if err != nil {
		return nil, []error{convertCompileError(err, ErrCodeBuildFailed)}
	}

	cfg, err := compiler.CompileKeymap(value)
	if err != nil {
		return nil, []error{convertCompileError(err, ErrCodeGeneric)}
	}

	if verrs := compiler.Validate(cfg); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return nil, errs
	}

	hash, err := ir.ConfigHash(cfg)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("hashing config: %v", err)}}
	}

	return &LoadResult{Config: cfg, Hash: hash, FileCount: len(files)}, nil
}

// loadConfigOrFail is LoadConfig for commands that only need the config:
// the first error becomes an ExitError.
func loadConfigOrFail(dir string) (*LoadResult, error) {
	res, errs := LoadConfig(dir)
	if len(errs) == 0 {
		return res, nil
	}
	code, _ := errorCode(errs[0])
	exit := ExitFailure
	if code == ErrCodeNotFound || code == ErrCodeNoFiles || code == ErrCodeScanError {
		exit = ExitCommandError
	}
	return nil, WrapExitError(exit, "failed to load config", errs[0])
}

// convertCompileError keeps the code and position of a CompileError and
// tags anything else with fallback.
func convertCompileError(err error, fallback string) error {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		code := ce.Code
		if code == "" {
			code = fallback
		}
		return &LoadError{Code: code, Message: fmt.Sprintf("%s: %s", ce.Field, ce.Message), Pos: ce.Pos}
	}
	return &LoadError{Code: fallback, Message: err.Error()}
}

// errorCode returns the stable code and message of a load or validation
// error.
func errorCode(err error) (code, message string) {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code, le.Message
	}
	var ve compiler.ValidationError
	if errors.As(err, &ve) {
		return ve.Code, fmt.Sprintf("%s: %s", ve.Field, ve.Message)
	}
	return ErrCodeGeneric, err.Error()
}

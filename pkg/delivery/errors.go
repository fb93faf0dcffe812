package delivery

import (
	"errors"
	"fmt"
)

var (
	// ErrBuild is matched by every *BuildError
	ErrBuild = errors.New("secure delivery build failed")
	// ErrNoStatus is returned for a delivery result without status entries
	ErrNoStatus = errors.New("delivery result has no status")
)

// BuildError reports the pipeline state in which building a secure
// delivery failed
type BuildError struct {
	State State
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s in state %s: %v", ErrBuild, e.State, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Is reports ErrBuild as a match
func (e *BuildError) Is(target error) bool { return target == ErrBuild }

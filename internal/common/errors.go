package common

import "fmt"

// ErrDependencyCycle is returned when the build graph contains a cycle that
// leaves at least one target unbuildable.
var ErrDependencyCycle = fmt.Errorf("cannot build the target, two or more intermediate targets depend on each other in a cycle")

// ErrDuplicateDependency is returned when the resolver is asked to record a
// second, inconsistent Dependency for a file that already has one.
var ErrDuplicateDependency = fmt.Errorf("the given file has inconsistent dependencies: cannot create a dependency twice for the same file")

// NothingToBuildError is returned when a target has no direct dependencies
// to build it from.
type NothingToBuildError struct {
	Path string
}

func (e *NothingToBuildError) Error() string {
	return fmt.Sprintf("cannot build file %s because it has no files to build it from", e.Path)
}

// InvalidFileTypeError is returned when a file's kind is unknown or does
// not belong where it was found in the graph.
type InvalidFileTypeError struct {
	Path string
}

func (e *InvalidFileTypeError) Error() string {
	return fmt.Sprintf("invalid or unknown file type of file %q", e.Path)
}

// InvalidCompilerValueError is returned when a compiler configuration value
// is out of range or otherwise unusable (e.g. optimization level).
type InvalidCompilerValueError struct {
	Option string
	Value  string
}

func (e *InvalidCompilerValueError) Error() string {
	return fmt.Sprintf("invalid value %q for %s in compiler options", e.Value, e.Option)
}

// ProcessFailedError wraps a non-zero exit from a spawned compiler/linker
// child. Code is nil when the process was killed by a signal.
type ProcessFailedError struct {
	Code *int
}

func (e *ProcessFailedError) Error() string {
	if e.Code == nil {
		return "child process was terminated by a signal"
	}
	return fmt.Sprintf("child process exited with code %d", *e.Code)
}

// DoesNotHappenError marks an internal invariant violation: a code path the
// implementation believes can never be reached.
type DoesNotHappenError struct {
	Msg string
}

func (e *DoesNotHappenError) Error() string {
	return fmt.Sprintf("this is a bug, please report it: %s", e.Msg)
}

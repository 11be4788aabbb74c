// Package compiler is the build driver's only window onto GCC/Clang-
// specific behavior: everything about how a particular compiler turns a
// Dependency into a child process command line lives behind the Compiler
// interface, so the scanner, resolver and scheduler never need to know the
// difference between gcc and clang, let alone any other toolchain.
package compiler

import (
	"github.com/ccbuild/ccbuild/internal/depgraph"
)

// Command is a ready-to-spawn child process invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
}

// Compiler turns one Dependency into the command that builds it, and any
// extra Dependency records the scheduler must additionally resolve and
// build first (used when building an executable discovers that one of its
// direct object-file dependencies is still a bare source file and must be
// compiled to an object on the fly).
type Compiler interface {
	Build(dep *depgraph.Dependency) (Command, []*depgraph.Dependency, error)
}

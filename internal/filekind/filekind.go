// Package filekind classifies C/C++ source tree files by path extension.
package filekind

import "strings"

// Language is the source language a file belongs to.
type Language int

const (
	LangUnknown Language = iota
	LangC
	LangCpp
)

func (l Language) String() string {
	switch l {
	case LangC:
		return "c"
	case LangCpp:
		return "c++"
	default:
		return "unknown"
	}
}

// State describes what role a file plays in the build, independent of its
// source language.
type State int

const (
	StateUnknown State = iota
	StateSource
	StateSourceModule
	StateHeader
	StatePrecompiled
	StateObject
	StateExecutable
)

func (s State) String() string {
	switch s {
	case StateSource:
		return "source"
	case StateSourceModule:
		return "source-module"
	case StateHeader:
		return "header"
	case StatePrecompiled:
		return "precompiled"
	case StateObject:
		return "object"
	case StateExecutable:
		return "executable"
	default:
		return "unknown"
	}
}

// Kind is the full classification of a file: what language it is written
// in and what role it plays.
type Kind struct {
	Lang  Language
	State State
}

// Known reports whether ext was recognized.
func (k Kind) Known() bool {
	return k.Lang != LangUnknown || k.State != StateUnknown
}

var cExts = map[string]struct{}{
	"c": {},
}

var cppSourceExts = map[string]struct{}{
	"C": {}, "cc": {}, "cpp": {}, "CPP": {}, "c++": {}, "cp": {}, "cxx": {},
}

var cHeaderExts = map[string]struct{}{
	"h": {},
}

var cppHeaderExts = map[string]struct{}{
	"H": {}, "hh": {}, "hpp": {}, "hxx": {}, "h++": {},
}

// moduleExts are C++20 module-interface-unit extensions. They are just
// another C++ source extension as far as FromExt is concerned: whether a
// file is actually a module is decided dynamically by the scanner observing
// an `export module X;` declaration, not by its extension (see the State →
// StateSourceModule promotion in depgraph.Resolve).
var moduleExts = map[string]struct{}{
	"cppm": {}, "ixx": {}, "mpp": {},
}

// FromExt classifies a file by its extension (without the leading dot).
func FromExt(ext string) Kind {
	if _, ok := cExts[ext]; ok {
		return Kind{Lang: LangC, State: StateSource}
	}
	if _, ok := cppSourceExts[ext]; ok {
		return Kind{Lang: LangCpp, State: StateSource}
	}
	if _, ok := cHeaderExts[ext]; ok {
		return Kind{Lang: LangC, State: StateHeader}
	}
	if _, ok := cppHeaderExts[ext]; ok {
		return Kind{Lang: LangCpp, State: StateHeader}
	}
	if _, ok := moduleExts[ext]; ok {
		return Kind{Lang: LangCpp, State: StateSource}
	}
	return Kind{}
}

// FromPath classifies a file by its path, using the extension after the
// last '.'.
func FromPath(path string) Kind {
	dot := strings.LastIndexByte(path, '.')
	if dot == -1 || dot == len(path)-1 {
		return Kind{}
	}
	return FromExt(path[dot+1:])
}

package compiler

import (
	"testing"

	"github.com/ccbuild/ccbuild/internal/filekind"
)

func TestScoreCompilerPrefersGccForC(t *testing.T) {
	if scoreCompiler(familyGcc, true, filekind.LangC) != maxScore {
		t.Fatal("gcc should score maxScore for C")
	}
	if scoreCompiler(familyGcc, true, filekind.LangCpp) >= maxScore {
		t.Fatal("gcc should not score maxScore for C++ (g++ is a distinct binary)")
	}
}

func TestScoreCompilerUnreachableIsWorstScore(t *testing.T) {
	unreachable := scoreCompiler(familyGcc, false, filekind.LangC)
	other := scoreCompiler(familyOther, true, filekind.LangC)
	if unreachable >= other {
		t.Fatalf("an unreachable compiler (%d) should score below a reachable unknown one (%d)", unreachable, other)
	}
}

func TestFindCompilerNeverReturnsEmpty(t *testing.T) {
	// An unreachable override falls through to env/candidate scoring; either
	// way FindCompiler must always resolve to some candidate string.
	if got := FindCompiler("/does/not/exist/cc", filekind.LangC); got == "" {
		t.Fatal("FindCompiler must never return an empty string")
	}
}

package compiler

import (
	"bytes"
	"os"
	"os/exec"
	"strings"

	"github.com/ccbuild/ccbuild/internal/filekind"
)

type family int

const (
	familyOther family = iota
	familyGcc
	familyClang
)

const maxScore = 3

// FindCompiler picks an executable for lang, preferring an explicit
// override, then $CC/$CXX, then the usual gcc/clang executable names,
// scoring each candidate by running it with --version and matching its
// reported family against the requested language.
func FindCompiler(override string, lang filekind.Language) string {
	if override != "" {
		if _, ok := testCompiler(override); ok {
			return override
		}
	}

	envVar := "CC"
	primary := []string{"cc", "gcc", "clang"}
	if lang == filekind.LangCpp {
		envVar = "CXX"
		primary = []string{"c++", "g++", "clang++"}
	}

	best := primary[0]
	if override != "" {
		best = override
	}
	bestScore := -2

	var candidates []string
	if env := os.Getenv(envVar); env != "" {
		candidates = append(candidates, env)
	}
	candidates = append(candidates, primary...)

	for _, c := range candidates {
		fam, ok := testCompiler(c)
		score := scoreCompiler(fam, ok, lang)
		if score > bestScore {
			best = c
			bestScore = score
			if score == maxScore {
				return best
			}
		}
	}

	return best
}

func scoreCompiler(fam family, ok bool, lang filekind.Language) int {
	if !ok {
		return -1
	}
	switch fam {
	case familyOther:
		return 1
	case familyGcc:
		if lang == filekind.LangC {
			return maxScore
		}
		return 2
	case familyClang:
		return 2
	default:
		return -1
	}
}

// testCompiler runs `path --version` and classifies the reported family
// from the first word of its stdout.
func testCompiler(path string) (family, bool) {
	cmd := exec.Command(path, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return familyOther, false
	}

	first := out.String()
	if sp := strings.IndexAny(first, " \n"); sp != -1 {
		first = first[:sp]
	}

	switch first {
	case "gcc", "g++", "cc":
		return familyGcc, true
	case "clang", "clang++":
		return familyClang, true
	default:
		return familyOther, true
	}
}

package compiler

import (
	"strings"
	"testing"

	"github.com/ccbuild/ccbuild/internal/common"
	"github.com/ccbuild/ccbuild/internal/depgraph"
	"github.com/ccbuild/ccbuild/internal/filekind"
)

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestSynthesizeArgsDebugProfile(t *testing.T) {
	conf := Config{
		Optimization: OptimizationNone(),
		Asan:         true,
		DebugSymbols: true,
		CStd:         StdNumber(17),
		Warn:         []string{"all"},
	}
	compileArgs, linkArgs, err := synthesizeArgs(conf)
	if err != nil {
		t.Fatalf("synthesizeArgs: %v", err)
	}
	if !contains(compileArgs, "-O0") {
		t.Errorf("expected -O0 in %v", compileArgs)
	}
	if !contains(compileArgs, "-fsanitize=address") || !contains(linkArgs, "-fsanitize=address") {
		t.Errorf("expected asan flag on both compile and link args")
	}
	if !contains(compileArgs, "-g") {
		t.Errorf("expected -g in %v", compileArgs)
	}
	if !contains(compileArgs, "-std=c17") {
		t.Errorf("expected -std=c17 in %v", compileArgs)
	}
	if !contains(compileArgs, "-Wall") {
		t.Errorf("expected -Wall in %v", compileArgs)
	}
}

func TestSynthesizeArgsRejectsInvalidOptimization(t *testing.T) {
	conf := Config{Optimization: OptimizationLevel(9)}
	_, _, err := synthesizeArgs(conf)
	if err == nil {
		t.Fatal("expected an error for an out-of-range optimization level")
	}
	var target *common.InvalidCompilerValueError
	if !asInvalidCompilerValue(err, &target) {
		t.Fatalf("expected InvalidCompilerValueError, got %T: %v", err, err)
	}
}

func TestSynthesizeArgsRejectsInvalidCStd(t *testing.T) {
	conf := Config{Optimization: OptimizationNone(), CStd: StdNumber(20)}
	_, _, err := synthesizeArgs(conf)
	if err == nil {
		t.Fatal("expected an error for an invalid c_std")
	}
}

func asInvalidCompilerValue(err error, target **common.InvalidCompilerValueError) bool {
	v, ok := err.(*common.InvalidCompilerValueError)
	if ok {
		*target = v
	}
	return ok
}

func TestBuildObjectPicksCompilerByLanguage(t *testing.T) {
	conf := Config{Optimization: OptimizationNone()}
	c, err := NewGcc("gcc", "g++", conf)
	if err != nil {
		t.Fatal(err)
	}

	dep := &depgraph.Dependency{
		File:   depgraph.DepFile{Path: "out.o", Kind: filekind.Kind{Lang: filekind.LangCpp, State: filekind.StateObject}},
		Direct: []depgraph.DepFile{{Path: "a.cpp", Kind: filekind.Kind{Lang: filekind.LangCpp, State: filekind.StateSource}}},
	}
	cmd, extra, err := c.Build(dep)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if extra != nil {
		t.Errorf("expected no extra sub-dependencies, got %v", extra)
	}
	if cmd.Path != "g++" {
		t.Errorf("expected g++ for a C++ source, got %q", cmd.Path)
	}
	if !strings.Contains(strings.Join(cmd.Args, " "), "a.cpp") {
		t.Errorf("expected a.cpp in args: %v", cmd.Args)
	}
}

func TestBuildObjectEmptyDirectIsNothingToBuild(t *testing.T) {
	c, err := NewGcc("gcc", "g++", Config{Optimization: OptimizationNone()})
	if err != nil {
		t.Fatal(err)
	}
	dep := &depgraph.Dependency{File: depgraph.DepFile{Path: "out.o", Kind: filekind.Kind{State: filekind.StateObject}}}
	_, _, err = c.Build(dep)
	if err == nil {
		t.Fatal("expected NothingToBuildError")
	}
	if _, ok := err.(*common.NothingToBuildError); !ok {
		t.Fatalf("expected NothingToBuildError, got %T", err)
	}
}

func TestBuildExecutableLiftsSourceToObjectSubDependency(t *testing.T) {
	conf := Config{Optimization: OptimizationNone(), SrcRoot: "src", BinRoot: "bin"}
	c, err := NewGcc("gcc", "g++", conf)
	if err != nil {
		t.Fatal(err)
	}

	dep := &depgraph.Dependency{
		File: depgraph.DepFile{Path: "bin/app", Kind: filekind.Kind{State: filekind.StateExecutable}},
		Direct: []depgraph.DepFile{
			{Path: "src/main.c", Kind: filekind.Kind{Lang: filekind.LangC, State: filekind.StateSource}},
		},
	}
	cmd, extra, err := c.Build(dep)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cmd.Path != "gcc" {
		t.Errorf("expected gcc as linker for a pure-C executable, got %q", cmd.Path)
	}
	if len(extra) != 1 {
		t.Fatalf("expected exactly one synthesized object sub-dependency, got %d", len(extra))
	}
	if extra[0].File.Kind.State != filekind.StateObject {
		t.Errorf("expected synthesized sub-dependency to be an Object, got %v", extra[0].File.Kind.State)
	}
}

func TestBuildInvalidFileTypeForDependencyFile(t *testing.T) {
	c, err := NewGcc("gcc", "g++", Config{Optimization: OptimizationNone()})
	if err != nil {
		t.Fatal(err)
	}
	dep := &depgraph.Dependency{File: depgraph.DepFile{Path: "x.h", Kind: filekind.Kind{State: filekind.StateHeader}}}
	_, _, err = c.Build(dep)
	if _, ok := err.(*common.InvalidFileTypeError); !ok {
		t.Fatalf("expected InvalidFileTypeError, got %T: %v", err, err)
	}
}

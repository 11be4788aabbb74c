package compiler

import (
	"fmt"
	"path/filepath"

	"github.com/ccbuild/ccbuild/internal/common"
	"github.com/ccbuild/ccbuild/internal/depgraph"
	"github.com/ccbuild/ccbuild/internal/filekind"
)

// gccLike implements Compiler for the entire gcc/clang family: clang
// accepts the same driver flags as gcc for everything this build driver
// synthesizes, so, unlike the two near-identical wrapper types this is
// grounded on, one struct serves both instead of duplicating the flag
// synthesis and build logic per toolchain.
type gccLike struct {
	ccBin       string
	cxxBin      string
	srcRoot     string
	binRoot     string
	compileArgs []string
	linkArgs    []string
}

// NewGcc builds a Compiler that dispatches each compile to cc or cxx
// according to the input file's language, and links with cxx whenever any
// direct input is C++ (a C++ driver must be used to link in the C++
// runtime), falling back to cc for pure-C executables. Flags are
// synthesized once from conf and shared by both drivers, matching how gcc
// and g++ accept the same option set.
func NewGcc(cc, cxx string, conf Config) (Compiler, error) {
	compileArgs, linkArgs, err := synthesizeArgs(conf)
	if err != nil {
		return nil, err
	}
	return &gccLike{
		ccBin:       cc,
		cxxBin:      cxx,
		srcRoot:     conf.SrcRoot,
		binRoot:     conf.BinRoot,
		compileArgs: compileArgs,
		linkArgs:    linkArgs,
	}, nil
}

func (g *gccLike) compilerFor(lang filekind.Language) string {
	if lang == filekind.LangCpp {
		return g.cxxBin
	}
	return g.ccBin
}

func synthesizeArgs(conf Config) (compileArgs, linkArgs []string, err error) {
	if !conf.Optimization.InRange(0, 3) {
		return nil, nil, &common.InvalidCompilerValueError{Option: "optimization", Value: conf.Optimization.String()}
	}

	switch {
	case conf.Optimization.HasLevel:
		compileArgs = append(compileArgs, fmt.Sprintf("-O%d", conf.Optimization.Level))
	case conf.Optimization.Named == "all":
		compileArgs = append(compileArgs, "-O3")
	default:
		compileArgs = append(compileArgs, "-O0")
	}

	if conf.Asan {
		compileArgs = append(compileArgs, "-fsanitize=address")
		linkArgs = append(linkArgs, "-fsanitize=address")
	}

	if conf.DebugSymbols {
		compileArgs = append(compileArgs, "-g")
	}

	if conf.CStd.Name != "" {
		compileArgs = append(compileArgs, "-std="+conf.CStd.Name)
	} else if conf.CStd.Number != 0 {
		if !conf.CStd.IsValidCNum() {
			return nil, nil, &common.InvalidCompilerValueError{Option: "c_std", Value: fmt.Sprint(conf.CStd.Number)}
		}
		compileArgs = append(compileArgs, fmt.Sprintf("-std=c%d", conf.CStd.Number))
	}
	if conf.CppStd.Name != "" {
		compileArgs = append(compileArgs, "-std="+conf.CppStd.Name)
	} else if conf.CppStd.Number != 0 {
		if !conf.CppStd.IsValidCppNum() {
			return nil, nil, &common.InvalidCompilerValueError{Option: "cpp_std", Value: fmt.Sprint(conf.CppStd.Number)}
		}
		compileArgs = append(compileArgs, fmt.Sprintf("-std=c++%d", conf.CppStd.Number))
	}

	for _, d := range conf.Defines {
		if d.HasValue {
			compileArgs = append(compileArgs, fmt.Sprintf("-D%s=%s", d.Name, d.Value))
		} else {
			compileArgs = append(compileArgs, "-D"+d.Name)
		}
	}
	for _, w := range conf.Warn {
		compileArgs = append(compileArgs, "-W"+w)
	}
	for _, w := range conf.NoWarn {
		compileArgs = append(compileArgs, "-Wno-"+w)
	}

	compileArgs = append(compileArgs, conf.Args...)
	linkArgs = append(linkArgs, conf.Args...)

	return compileArgs, linkArgs, nil
}

func (g *gccLike) Build(dep *depgraph.Dependency) (Command, []*depgraph.Dependency, error) {
	switch dep.File.Kind.State {
	case filekind.StateObject:
		return g.buildObject(dep)
	case filekind.StateExecutable:
		return g.buildExecutable(dep)
	default:
		return Command{}, nil, &common.InvalidFileTypeError{Path: dep.File.Path}
	}
}

func (g *gccLike) buildObject(dep *depgraph.Dependency) (Command, []*depgraph.Dependency, error) {
	if len(dep.Direct) == 0 {
		return Command{}, nil, &common.NothingToBuildError{Path: dep.File.Path}
	}

	args := []string{"-c", "-o", dep.File.Path}
	for _, f := range dep.Direct {
		if f.Kind.State != filekind.StateSource && f.Kind.State != filekind.StateSourceModule {
			return Command{}, nil, &common.InvalidFileTypeError{Path: f.Path}
		}
		args = append(args, f.Path)
	}
	args = append(args, g.compileArgs...)

	return Command{Path: g.compilerFor(dep.Direct[0].Kind.Lang), Args: args}, nil, nil
}

func (g *gccLike) buildExecutable(dep *depgraph.Dependency) (Command, []*depgraph.Dependency, error) {
	if len(dep.Direct) == 0 {
		return Command{}, nil, &common.NothingToBuildError{Path: dep.File.Path}
	}

	args := []string{"-o", dep.File.Path}
	var extra []*depgraph.Dependency
	linker := g.ccBin

	for _, f := range dep.Direct {
		if f.Kind.Lang == filekind.LangCpp {
			linker = g.cxxBin
		}
		switch f.Kind.State {
		case filekind.StateObject:
			args = append(args, f.Path)
		case filekind.StateSource, filekind.StateSourceModule:
			objDep := g.objectDependencyFor(f)
			args = append(args, objDep.File.Path)
			extra = append(extra, objDep)
		default:
			return Command{}, nil, &common.InvalidFileTypeError{Path: f.Path}
		}
	}
	args = append(args, g.linkArgs...)

	return Command{Path: linker, Args: args}, extra, nil
}

// objectDependencyFor derives the object-file Dependency that compiling a
// bare source file directly linked into an executable implies, mirroring
// how the resolver would have produced it had an explicit object target
// been named in the graph up front.
func (g *gccLike) objectDependencyFor(src depgraph.DepFile) *depgraph.Dependency {
	rel, err := filepath.Rel(g.srcRoot, src.Path)
	if err != nil {
		rel = filepath.Base(src.Path)
	}
	objPath := filepath.Join(g.binRoot, "obj", rel) + ".o"

	return &depgraph.Dependency{
		File:   depgraph.DepFile{Path: objPath, Kind: filekind.Kind{Lang: src.Kind.Lang, State: filekind.StateObject}},
		Direct: []depgraph.DepFile{src},
	}
}

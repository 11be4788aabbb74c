// Package project ties scanning, dependency resolution, compiler flag
// synthesis and scheduling together into the clean/build/run actions,
// grounded on original_source/src/builder.rs's Builder::build (resolve the
// whole source tree, queue every object, then queue the link step) and
// dir_structure.rs's iterative directory-stack source discovery.
package project

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ccbuild/ccbuild/internal/common"
	"github.com/ccbuild/ccbuild/internal/compiler"
	"github.com/ccbuild/ccbuild/internal/config"
	"github.com/ccbuild/ccbuild/internal/depgraph"
	"github.com/ccbuild/ccbuild/internal/filekind"
	"github.com/ccbuild/ccbuild/internal/scheduler"
)

var srcExtensions = map[string]bool{
	".c": true, ".C": true, ".cc": true, ".cpp": true,
	".CPP": true, ".c++": true, ".cp": true, ".cxx": true,
	".cppm": true, ".ixx": true, ".mpp": true,
}

// Project is one resolved ccbuild.toml plus the profile (debug or release)
// an action runs under.
type Project struct {
	Root    string
	Conf    config.Config
	Profile config.Profile
	Logger  *common.Logger
	Verbose bool
	Workers int
}

// Load reads root/ccbuild.toml if present, else falls back to the
// compiled-in default configuration.
func Load(root string, release bool, logger *common.Logger, verbose bool, workers int) (*Project, error) {
	confPath := filepath.Join(root, "ccbuild.toml")
	var conf config.Config
	if _, err := os.Stat(confPath); err == nil {
		conf, err = config.Load(confPath)
		if err != nil {
			return nil, err
		}
	} else {
		conf = config.Default()
	}

	profile := conf.Debug
	if release {
		profile = conf.Release
	}

	return &Project{Root: root, Conf: conf, Profile: profile, Logger: logger, Verbose: verbose, Workers: workers}, nil
}

func (p *Project) srcRoot() string {
	return filepath.Join(p.Root, p.Conf.Project.SrcRoot)
}

func (p *Project) binaryPath() string {
	return filepath.Join(p.Profile.Compiler.BinRoot, p.Conf.Project.Name)
}

// findSourceFiles walks srcRoot with an explicit directory stack (not
// recursion: depth is as unbounded as the project tree on disk), returning
// every file whose extension marks it as a C/C++ translation unit.
func findSourceFiles(srcRoot string) ([]string, error) {
	var out []string
	dirs := []string{srcRoot}

	for len(dirs) > 0 {
		dir := dirs[len(dirs)-1]
		dirs = dirs[:len(dirs)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				dirs = append(dirs, path)
				continue
			}
			if srcExtensions[filepath.Ext(entry.Name())] {
				out = append(out, path)
			}
		}
	}

	return out, nil
}

// objectPathFor maps a source file under srcRoot to its object file under
// binRoot/obj, preserving the relative directory structure.
func objectPathFor(srcRoot, binRoot, src string) (string, error) {
	rel, err := filepath.Rel(srcRoot, src)
	if err != nil {
		return "", err
	}
	return filepath.Join(binRoot, "obj", rel) + ".o", nil
}

// resolveObjectDependency resolves src's full include/module graph via cache
// and reshapes it into the build-graph Dependency compiler.Build expects
// for an Object target: Direct is the lone source file, and the resolver's
// Transitive/NonTransitive/Modules are carried over unchanged so is_up_to_date
// sees every header and module edge the source pulls in, not just the
// source file's own mtime.
func resolveObjectDependency(cache *depgraph.DepCache, srcRoot, binRoot, src string) (*depgraph.Dependency, error) {
	dep, err := cache.Resolve(src)
	if err != nil {
		return nil, err
	}

	objPath, err := objectPathFor(srcRoot, binRoot, src)
	if err != nil {
		return nil, err
	}

	return &depgraph.Dependency{
		File:          depgraph.DepFile{Path: objPath, Kind: filekind.Kind{Lang: dep.File.Kind.Lang, State: filekind.StateObject}},
		Direct:        []depgraph.DepFile{dep.File},
		Transitive:    dep.Transitive,
		NonTransitive: dep.NonTransitive,
		Modules:       dep.Modules,
	}, nil
}

// buildAll resolves the whole source tree, queues and builds every
// out-of-date object, and only then queues and builds the link step, so the
// link never runs before or alongside the compiles it consumes. It performs
// zero compiler invocations when every output is already up to date.
func (p *Project) buildAll() (string, error) {
	srcRoot := p.srcRoot()
	binRoot := p.Profile.Compiler.BinRoot

	sources, err := findSourceFiles(srcRoot)
	if err != nil {
		return "", err
	}
	if len(sources) == 0 {
		return "", &common.NothingToBuildError{Path: srcRoot}
	}

	cache := depgraph.New([]string{srcRoot})
	if err := cache.IndexModules(sources); err != nil {
		return "", err
	}

	cc := compiler.FindCompiler(p.Profile.CC, filekind.LangC)
	cpp := compiler.FindCompiler(p.Profile.CPP, filekind.LangCpp)
	gcc, err := compiler.NewGcc(cc, cpp, p.Profile.Compiler)
	if err != nil {
		return "", err
	}

	sched := scheduler.New(gcc, cache, p.Logger, p.Workers, p.Verbose)
	stopWatchingSignals := interruptGracefully(sched)
	defer stopWatchingSignals()

	var objects []depgraph.DepFile
	for _, src := range sources {
		objDep, err := resolveObjectDependency(cache, srcRoot, binRoot, src)
		if err != nil {
			return "", err
		}
		if err := sched.QueueTarget(objDep); err != nil {
			return "", err
		}
		objects = append(objects, objDep.File)
	}

	if err := sched.Build(); err != nil {
		return "", err
	}

	binPath := p.binaryPath()
	linkDep := &depgraph.Dependency{
		File:   depgraph.DepFile{Path: binPath, Kind: filekind.Kind{State: filekind.StateExecutable}},
		Direct: objects,
	}
	if err := sched.QueueTarget(linkDep); err != nil {
		return "", err
	}

	if err := sched.Build(); err != nil {
		return "", err
	}

	return binPath, nil
}

// interruptGracefully asks sched to stop queueing new commands on SIGINT or
// SIGTERM instead of letting the process die mid-spawn, grounded on
// daemon.go's PeriodicallyInterruptHangedInvocations signal loop. The
// returned func stops watching once the build this call guards has finished.
func interruptGracefully(sched *scheduler.Scheduler) func() {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-signals:
			sched.Stop()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(signals)
		close(done)
	}
}

// Build resolves and builds the configured target.
func (p *Project) Build() (string, error) {
	return p.buildAll()
}

// Clean removes the configured binary root.
func (p *Project) Clean() error {
	binRoot := p.Profile.Compiler.BinRoot
	if binRoot == "" {
		return &common.DoesNotHappenError{Msg: "clean called with empty bin_root"}
	}
	return os.RemoveAll(binRoot)
}

// Run builds the target, then spawns it with appArgs, connecting its
// stdio to this process's own, and surfaces its exit code as an error.
func (p *Project) Run(appArgs []string) error {
	binPath, err := p.buildAll()
	if err != nil {
		return err
	}

	cmd := exec.Command(binPath, appArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Dir = p.Root

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			return &common.ProcessFailedError{Code: &code}
		}
		return err
	}
	return nil
}

// New scaffolds a fresh project at dir: a default ccbuild.toml and a
// minimal main source file under src/.
func New(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	name := filepath.Base(filepath.Clean(dir))
	tomlPath := filepath.Join(dir, "ccbuild.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		return fmt.Errorf("%s already exists", tomlPath)
	}

	contents := fmt.Sprintf(`[project]
name = "%s"
src = "src"
bin = "bin"

[build]
cc = "cc"
cpp = "c++"
`, name)
	if err := os.WriteFile(tomlPath, []byte(contents), 0o644); err != nil {
		return err
	}

	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return err
	}

	main := `#include <stdio.h>

int main(void) {
    printf("hello, world\n");
    return 0;
}
`
	return os.WriteFile(filepath.Join(srcDir, "main.c"), []byte(main), 0o644)
}

package depgraph

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ccbuild/ccbuild/internal/common"
	"github.com/ccbuild/ccbuild/internal/filekind"
	"github.com/ccbuild/ccbuild/internal/scan"
)

// DepCache memoizes resolved Dependency records and the module name to
// providing-file map, so a file reachable through several include paths is
// only ever scanned and resolved once.
//
// DepCache is not safe for concurrent use. It is only ever driven by the
// scheduler's single orchestrator, which resolves the whole graph before
// any child process is spawned, so no mutex is needed (see DESIGN.md).
type DepCache struct {
	includeDirs []string

	fileCache   map[string]*Dependency
	moduleMap   map[string]string // module name -> providing file path
	moduleCache map[string]*Dependency
}

// New creates an empty DepCache. includeDirs are searched, in order, for
// <system> includes and as a fallback for "quoted" includes that are not
// found relative to the including file.
func New(includeDirs []string) *DepCache {
	return &DepCache{
		includeDirs: includeDirs,
		fileCache:   make(map[string]*Dependency),
		moduleMap:   make(map[string]string),
		moduleCache: make(map[string]*Dependency),
	}
}

// IndexModules scans paths once, recording which file provides which
// module, ahead of full dependency resolution. This lets Resolve answer an
// `import Name;` edge against a file that has not been reached yet by the
// DFS, without restarting resolution once a late-discovered provider turns
// up — the module_map is fully populated before it is ever read.
func (c *DepCache) IndexModules(paths []string) error {
	for _, p := range paths {
		p, err := Canonicalize(p)
		if err != nil {
			return err
		}
		dirs, err := scan.File(p)
		if err != nil {
			return err
		}
		for _, d := range dirs {
			if d.Kind == scan.KindModuleDecl && d.Module != "" {
				c.moduleMap[d.Module] = p
			}
		}
	}
	return nil
}

// Canonicalize resolves path to an absolute, cleaned form so the same file
// is always keyed identically in the cache.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// resolveFilePath resolves an #include/import-file target relative to the
// including file's directory (for quoted includes) and the configured
// search path, the way the C preprocessor does. It returns ok=false for a
// target that cannot be found anywhere in the project or search dirs
// (typically a system/standard-library header), which is deliberately not
// an error: such files are outside the project and are not tracked.
func (c *DepCache) resolveFilePath(includerDir, target string, system bool) (string, bool) {
	if !system {
		if cand := filepath.Join(includerDir, target); fileExists(cand) {
			path, err := Canonicalize(cand)
			return path, err == nil
		}
	}
	for _, dir := range c.includeDirs {
		if cand := filepath.Join(dir, target); fileExists(cand) {
			path, err := Canonicalize(cand)
			return path, err == nil
		}
	}
	return "", false
}

// frame is one stack level of the iterative DFS: the file being resolved,
// its directives, how far we have gotten through them, and the
// accumulators being built up for its eventual Dependency record.
type frame struct {
	path string
	kind filekind.Kind
	dirs []scan.Directive
	idx  int

	direct   []DepFile
	transSet map[string]DepFile
	nonTrSet map[string]DepFile
	modSet   map[string]DepFile
	provides string
}

func addSet(set map[string]DepFile, f DepFile) {
	set[f.Path] = f
}

func flatten(set map[string]DepFile) []DepFile {
	if len(set) == 0 {
		return nil
	}
	out := make([]DepFile, 0, len(set))
	for _, f := range set {
		out = append(out, f)
	}
	return out
}

// Resolve computes (and memoizes) the Dependency for rootPath, recursively
// resolving every file it reaches through #include, module import and
// header-unit import edges.
//
// The traversal is an explicit-stack DFS rather than a recursive one,
// because include depth is controlled by the project's own source files
// (effectively user/attacker controlled input), and an adversarially deep
// include chain should not be able to exhaust the Go call stack.
//
// Include cycles (A includes B includes A, normally prevented in practice
// by header guards) are tolerated: a file encountered while it is still
// being resolved further up the stack is treated as already satisfied and
// simply not re-entered.
func (c *DepCache) Resolve(rootPath string) (*Dependency, error) {
	rootPath, err := Canonicalize(rootPath)
	if err != nil {
		return nil, err
	}
	if dep, ok := c.fileCache[rootPath]; ok {
		return dep, nil
	}

	var stack []*frame
	onStack := make(map[string]bool)

	push := func(path string) error {
		dirs, err := scan.File(path)
		if err != nil {
			return err
		}
		stack = append(stack, &frame{
			path:     path,
			kind:     filekind.FromPath(path),
			dirs:     dirs,
			transSet: make(map[string]DepFile),
			nonTrSet: make(map[string]DepFile),
			modSet:   make(map[string]DepFile),
		})
		onStack[path] = true
		return nil
	}

	if err := push(rootPath); err != nil {
		return nil, err
	}

	// mergeChild folds a just-finished child Dependency into the frame
	// that is resolving it, according to how the edge that reached it
	// propagates (see the Dependency doc comment).
	mergeChild := func(parent *frame, child *Dependency, kind scan.DirectiveKind, exported bool) {
		parent.direct = append(parent.direct, child.File)

		headerLike := kind == scan.KindInclude
		if headerLike || exported {
			addSet(parent.transSet, child.File)
			for _, f := range child.Transitive {
				addSet(parent.transSet, f)
			}
			for _, f := range child.Modules {
				addSet(parent.transSet, f)
			}
		} else {
			addSet(parent.nonTrSet, child.File)
			for _, f := range child.Transitive {
				addSet(parent.nonTrSet, f)
			}
		}
		if kind == scan.KindModuleImport {
			addSet(parent.modSet, child.File)
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.idx >= len(top.dirs) {
			// A file only becomes a module once it is observed declaring one;
			// extension alone never promotes it (see filekind.FromExt).
			if top.provides != "" {
				top.kind.State = filekind.StateSourceModule
			}
			dep := &Dependency{
				File:          DepFile{Path: top.path, Kind: top.kind},
				Direct:        top.direct,
				Transitive:    flatten(top.transSet),
				NonTransitive: flatten(top.nonTrSet),
				Modules:       flatten(top.modSet),
				Provides:      top.provides,
			}
			c.fileCache[top.path] = dep
			if dep.Provides != "" {
				c.moduleMap[dep.Provides] = top.path
				c.moduleCache[dep.Provides] = dep
			}
			delete(onStack, top.path)
			stack = stack[:len(stack)-1]

			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				mergeChild(parent, dep, parent.dirs[parent.idx-1].Kind, parent.dirs[parent.idx-1].Exported)
			}
			continue
		}

		d := top.dirs[top.idx]
		top.idx++

		switch d.Kind {
		case scan.KindModuleDecl:
			top.provides = d.Module

		case scan.KindInclude, scan.KindFileImport:
			childPath, ok := c.resolveFilePath(filepath.Dir(top.path), d.Path, d.System)
			if !ok {
				continue // system/external header, outside the project
			}
			if err := c.stepInto(childPath, top, d, &stack, onStack, mergeChild); err != nil {
				return nil, err
			}

		case scan.KindModuleImport:
			name := d.Module
			if strings.HasPrefix(name, ":") {
				// A bare partition import is textually prefixed with the
				// enclosing file's own module name before lookup.
				name = top.provides + name
			}
			childPath, ok := c.moduleMap[name]
			if !ok {
				continue // no file in the project provides this module
			}
			if err := c.stepInto(childPath, top, d, &stack, onStack, mergeChild); err != nil {
				return nil, err
			}
		}
	}

	return c.fileCache[rootPath], nil
}

// stepInto resolves one outgoing edge from top to childPath: reusing the
// cached Dependency if we have one, merging immediately and tolerating the
// edge if childPath is mid-resolution further up the stack (a cycle), or
// pushing a new frame to resolve it.
func (c *DepCache) stepInto(
	childPath string,
	top *frame,
	d scan.Directive,
	stack *[]*frame,
	onStack map[string]bool,
	mergeChild func(*frame, *Dependency, scan.DirectiveKind, bool),
) error {
	if cached, ok := c.fileCache[childPath]; ok {
		mergeChild(top, cached, d.Kind, d.Exported)
		return nil
	}
	if onStack[childPath] {
		// Cycle: treat the file as already satisfied (header-guard
		// semantics) rather than failing; it will be fully resolved by
		// the frame already in progress for it.
		top.direct = append(top.direct, DepFile{Path: childPath, Kind: filekind.FromPath(childPath)})
		return nil
	}

	dirs, err := scan.File(childPath)
	if err != nil {
		return err
	}
	*stack = append(*stack, &frame{
		path:     childPath,
		kind:     filekind.FromPath(childPath),
		dirs:     dirs,
		transSet: make(map[string]DepFile),
		nonTrSet: make(map[string]DepFile),
		modSet:   make(map[string]DepFile),
	})
	onStack[childPath] = true
	return nil
}

// FillDependency fills in dep.Transitive from dep.Direct: for every direct
// input that is a Source, Header or SourceModule (the kinds the scanner can
// actually resolve further), it resolves that input fully and folds its
// Transitive closure (plus itself) into dep. This is what lets a
// Dependency synthesized on the fly by a Compiler's build step (whose
// Direct is populated but whose Transitive is not) become as accurate as
// one produced by Resolve itself.
//
// It fails with common.ErrDuplicateDependency if dep.File has already been
// resolved once before.
func (c *DepCache) FillDependency(dep *Dependency) error {
	if _, ok := c.fileCache[dep.File.Path]; ok {
		return common.ErrDuplicateDependency
	}

	transSet := make(map[string]DepFile, len(dep.Transitive))
	for _, f := range dep.Transitive {
		addSet(transSet, f)
	}

	for _, f := range dep.Direct {
		switch f.Kind.State {
		case filekind.StateSource, filekind.StateHeader, filekind.StateSourceModule:
		default:
			continue
		}
		child, err := c.Resolve(f.Path)
		if err != nil {
			return err
		}
		addSet(transSet, child.File)
		for _, cf := range child.Transitive {
			addSet(transSet, cf)
		}
	}

	dep.Transitive = flatten(transSet)
	c.fileCache[dep.File.Path] = dep
	return nil
}

// Get returns the cached Dependency for path, if it has already been
// resolved.
func (c *DepCache) Get(path string) (*Dependency, bool) {
	path, err := Canonicalize(path)
	if err != nil {
		return nil, false
	}
	dep, ok := c.fileCache[path]
	return dep, ok
}

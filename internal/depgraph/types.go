// Package depgraph resolves the dependency graph of a C/C++ source tree:
// for every file it computes the set of other files it depends on, split
// by how that dependency propagates to whoever depends on *it* in turn.
package depgraph

import "github.com/ccbuild/ccbuild/internal/filekind"

// DepFile is a handle to one file participating in the dependency graph.
// Paths the resolver records are canonicalized (absolute, with "." and ".."
// segments collapsed) so the same source or header is never represented by
// two different strings. Object and executable output paths are joined from
// the configured binary root as given and are not canonicalized.
type DepFile struct {
	Path string
	Kind filekind.Kind
}

// Dependency is everything resolved for one file.
//
//   - Direct holds the file's own one-hop dependencies, in source order,
//     exactly as the scanner found them (after resolving #include/import
//     paths to concrete files and module names to their providers).
//   - Transitive holds the flattened, deduplicated closure of everything
//     that propagates to whoever depends on this file: every #include'd
//     file (textual inclusion always exposes what it includes) plus every
//     `export import`ed module or header unit (an exported import is
//     re-exported to consumers, exactly like #include would be).
//   - NonTransitive holds the targets of plain (non-exported) `import
//     Name;`, `import "file";` and `import <file>;` edges together with
//     each target's own Transitive set, flattened and deduplicated: these
//     must be built before this file and their staleness affects this
//     file, but C++20 import visibility rules mean they are NOT exposed to
//     whoever depends on this file, so they never propagate further.
//   - Modules holds the resolved provider files of every module this file
//     directly imports (exported or not) — the build-order edges a
//     scheduler needs regardless of propagation.
//   - Provides is the module name this file declares with `export module
//     Name;` (or `export module Name:Part;`), or "" if it declares none. A
//     bare `module Name;` is an implementation unit, not a provider: it
//     consumes the interface rather than declaring one.
type Dependency struct {
	File          DepFile
	Direct        []DepFile
	Transitive    []DepFile
	NonTransitive []DepFile
	Modules       []DepFile
	Provides      string
}

// AllDeps returns every file this Dependency's target depends on, direct
// or not, deduplicated. It is the set is_up_to_date must compare mtimes
// against, and the set a build scheduler must have already built.
func (d *Dependency) AllDeps() []DepFile {
	seen := make(map[string]struct{}, len(d.Direct)+len(d.Transitive)+len(d.NonTransitive)+len(d.Modules))
	var out []DepFile
	add := func(fs []DepFile) {
		for _, f := range fs {
			if _, ok := seen[f.Path]; ok {
				continue
			}
			seen[f.Path] = struct{}{}
			out = append(out, f)
		}
	}
	add(d.Direct)
	add(d.Transitive)
	add(d.NonTransitive)
	add(d.Modules)
	return out
}

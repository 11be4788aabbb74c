package depgraph

import "github.com/ccbuild/ccbuild/internal/common"

// IsUpToDate reports whether dep.File's on-disk output does not need to be
// rebuilt: it exists and is not older than any file it depends on, direct
// or transitive. It never inspects file contents, only modification times,
// exactly as spec'd: a touched-but-unchanged header still triggers a
// rebuild.
func IsUpToDate(outputPath string, dep *Dependency) (bool, error) {
	all := dep.AllDeps()
	paths := make([]string, len(all))
	for i, f := range all {
		paths[i] = f.Path
	}
	return common.IsUpToDate(outputPath, paths)
}

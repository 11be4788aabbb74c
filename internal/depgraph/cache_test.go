package depgraph

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ccbuild/ccbuild/internal/common"
	"github.com/ccbuild/ccbuild/internal/filekind"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveDirectAndTransitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.h"), `#include "b.h"
`)
	writeFile(t, filepath.Join(dir, "b.h"), `#include "c.h"
`)
	writeFile(t, filepath.Join(dir, "c.h"), `// leaf header
`)
	writeFile(t, filepath.Join(dir, "main.cpp"), `#include "a.h"
int main() { return 0; }
`)

	cache := New(nil)
	dep, err := cache.Resolve(filepath.Join(dir, "main.cpp"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(dep.Direct) != 1 || filepath.Base(dep.Direct[0].Path) != "a.h" {
		t.Fatalf("want direct=[a.h], got %+v", dep.Direct)
	}

	names := map[string]bool{}
	for _, f := range dep.Transitive {
		names[filepath.Base(f.Path)] = true
	}
	for _, want := range []string{"a.h", "b.h", "c.h"} {
		if !names[want] {
			t.Errorf("want %s in transitive closure, got %+v", want, dep.Transitive)
		}
	}
}

func TestResolveToleratesIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.h"), `#include "b.h"
`)
	writeFile(t, filepath.Join(dir, "b.h"), `#include "a.h"
`)

	cache := New(nil)
	_, err := cache.Resolve(filepath.Join(dir, "a.h"))
	if err != nil {
		t.Fatalf("cyclic include should resolve without error, got: %v", err)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.h"), `// nothing
`)
	writeFile(t, filepath.Join(dir, "main.cpp"), `#include "a.h"
`)

	cache := New(nil)
	path := filepath.Join(dir, "main.cpp")
	dep1, err := cache.Resolve(path)
	if err != nil {
		t.Fatal(err)
	}
	dep2, err := cache.Resolve(path)
	if err != nil {
		t.Fatal(err)
	}
	if dep1 != dep2 {
		t.Fatalf("Resolve should memoize and return the same record")
	}
}

func TestModuleDeclAndImportResolution(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "util.cppm"), `export module app.util;
`)
	writeFile(t, filepath.Join(dir, "main.cppm"), `import app.util;
`)

	cache := New(nil)
	if err := cache.IndexModules([]string{
		filepath.Join(dir, "util.cppm"),
		filepath.Join(dir, "main.cppm"),
	}); err != nil {
		t.Fatal(err)
	}

	dep, err := cache.Resolve(filepath.Join(dir, "main.cppm"))
	if err != nil {
		t.Fatal(err)
	}
	if len(dep.Modules) != 1 || filepath.Base(dep.Modules[0].Path) != "util.cppm" {
		t.Fatalf("want main.cppm's Modules=[util.cppm], got %+v", dep.Modules)
	}
	if len(dep.Transitive) != 0 {
		t.Fatalf("plain (non-exported) import should not be transitive, got %+v", dep.Transitive)
	}
	if len(dep.NonTransitive) != 1 {
		t.Fatalf("plain import should be non-transitive, got %+v", dep.NonTransitive)
	}
}

func TestExportedImportPropagatesTransitively(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "base.cppm"), `export module app.base;
`)
	writeFile(t, filepath.Join(dir, "mid.cppm"), `export module app.mid;
export import app.base;
`)

	cache := New(nil)
	if err := cache.IndexModules([]string{
		filepath.Join(dir, "base.cppm"),
		filepath.Join(dir, "mid.cppm"),
	}); err != nil {
		t.Fatal(err)
	}

	dep, err := cache.Resolve(filepath.Join(dir, "mid.cppm"))
	if err != nil {
		t.Fatal(err)
	}
	if len(dep.Transitive) != 1 || filepath.Base(dep.Transitive[0].Path) != "base.cppm" {
		t.Fatalf("export import should propagate transitively, got %+v", dep.Transitive)
	}
}

// TestPartitionImportResolvesAgainstEnclosingModule is the named Testable
// Property: in a file with `export module foo;`, the line `import :part;`
// resolves to module name `foo:part`.
func TestPartitionImportResolvesAgainstEnclosingModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "part.cppm"), `export module app.foo:part;
`)
	writeFile(t, filepath.Join(dir, "foo.cppm"), `export module app.foo;
import :part;
`)

	cache := New(nil)
	if err := cache.IndexModules([]string{
		filepath.Join(dir, "part.cppm"),
		filepath.Join(dir, "foo.cppm"),
	}); err != nil {
		t.Fatal(err)
	}

	dep, err := cache.Resolve(filepath.Join(dir, "foo.cppm"))
	if err != nil {
		t.Fatal(err)
	}
	if len(dep.Modules) != 1 || filepath.Base(dep.Modules[0].Path) != "part.cppm" {
		t.Fatalf("bare partition import should resolve to app.foo:part's provider, got %+v", dep.Modules)
	}
}

// TestBareModuleDeclDoesNotProvide covers the other half of the same
// partition: a bare `module Name;` is an implementation unit, so it must
// not register Name in module_map (only `export module Name;` does).
func TestBareModuleDeclDoesNotProvide(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "impl.cpp"), `module app.core;
`)

	cache := New(nil)
	dep, err := cache.Resolve(filepath.Join(dir, "impl.cpp"))
	if err != nil {
		t.Fatal(err)
	}
	if dep.Provides != "" {
		t.Fatalf("bare module decl must not provide, got Provides=%q", dep.Provides)
	}
	if _, ok := cache.moduleMap["app.core"]; ok {
		t.Fatalf("bare module decl must not register in module_map")
	}
}

// TestSourceKindPromotesToSourceModuleOnDecl covers the dynamic Source ->
// SourceModule promotion: kind is decided by what the scanner observes, not
// by extension.
func TestSourceKindPromotesToSourceModuleOnDecl(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mod.cpp"), `export module app.core;
`)
	writeFile(t, filepath.Join(dir, "plain.cppm"), `// no module declaration here
`)

	cache := New(nil)
	promoted, err := cache.Resolve(filepath.Join(dir, "mod.cpp"))
	if err != nil {
		t.Fatal(err)
	}
	if promoted.File.Kind.State != filekind.StateSourceModule {
		t.Fatalf("a .cpp file declaring export module should promote to StateSourceModule, got %v", promoted.File.Kind.State)
	}

	unpromoted, err := cache.Resolve(filepath.Join(dir, "plain.cppm"))
	if err != nil {
		t.Fatal(err)
	}
	if unpromoted.File.Kind.State != filekind.StateSource {
		t.Fatalf("a .cppm file declaring no module should stay StateSource, got %v", unpromoted.File.Kind.State)
	}
}

func TestFillDependencyUnionsTransitiveFromDirect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.h"), `#include "b.h"
`)
	writeFile(t, filepath.Join(dir, "b.h"), `// leaf
`)
	writeFile(t, filepath.Join(dir, "main.cpp"), `#include "a.h"
`)

	cache := New(nil)
	objPath := filepath.Join(dir, "main.o")
	dep := &Dependency{
		File:   DepFile{Path: objPath, Kind: filekind.Kind{Lang: filekind.LangCpp, State: filekind.StateObject}},
		Direct: []DepFile{{Path: filepath.Join(dir, "main.cpp"), Kind: filekind.Kind{Lang: filekind.LangCpp, State: filekind.StateSource}}},
	}

	if err := cache.FillDependency(dep); err != nil {
		t.Fatal(err)
	}

	names := map[string]bool{}
	for _, f := range dep.Transitive {
		names[filepath.Base(f.Path)] = true
	}
	for _, want := range []string{"main.cpp", "a.h", "b.h"} {
		if !names[want] {
			t.Errorf("want %s folded into filled Transitive, got %+v", want, dep.Transitive)
		}
	}
}

func TestFillDependencyRejectsDuplicateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.o")

	cache := New(nil)
	first := &Dependency{File: DepFile{Path: path, Kind: filekind.Kind{State: filekind.StateObject}}}
	if err := cache.FillDependency(first); err != nil {
		t.Fatal(err)
	}

	second := &Dependency{File: DepFile{Path: path, Kind: filekind.Kind{State: filekind.StateObject}}}
	err := cache.FillDependency(second)
	if !errors.Is(err, common.ErrDuplicateDependency) {
		t.Fatalf("want ErrDuplicateDependency, got %v", err)
	}
}

func TestIsUpToDate(t *testing.T) {
	dir := t.TempDir()
	hPath := filepath.Join(dir, "a.h")
	cppPath := filepath.Join(dir, "main.cpp")
	objPath := filepath.Join(dir, "main.o")

	writeFile(t, hPath, "// header\n")
	writeFile(t, cppPath, `#include "a.h"
`)

	cache := New(nil)
	dep, err := cache.Resolve(cppPath)
	if err != nil {
		t.Fatal(err)
	}

	// No object yet: not up to date.
	upToDate, err := IsUpToDate(objPath, dep)
	if err != nil {
		t.Fatal(err)
	}
	if upToDate {
		t.Fatal("missing output must never be up to date")
	}

	writeFile(t, objPath, "stub")
	upToDate, err = IsUpToDate(objPath, dep)
	if err != nil {
		t.Fatal(err)
	}
	if !upToDate {
		t.Fatal("freshly built output with older deps should be up to date")
	}

	// Touch the header after the object: must become stale.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(hPath, future, future); err != nil {
		t.Fatal(err)
	}
	upToDate, err = IsUpToDate(objPath, dep)
	if err != nil {
		t.Fatal(err)
	}
	if upToDate {
		t.Fatal("output older than a dependency must not be up to date")
	}
}

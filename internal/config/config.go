// Package config loads a ccbuild.toml project file, the way
// miasvanklei-nocc's internal/client/configuration.go loads its own
// configuration: a struct literal of defaults is built first, then
// github.com/BurntSushi/toml overrides whatever the project file sets, and
// finally the debug/release profiles are resolved against the shared
// [build] table.
package config

import (
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/ccbuild/ccbuild/internal/compiler"
)

// Project identifies the project being built and where its sources and
// build outputs live.
type Project struct {
	Name    string
	SrcRoot string
	BinRoot string
}

// Profile is a fully resolved debug or release build configuration: a
// compiler/linker pair plus the flag-synthesis configuration to drive
// compiler.NewGcc with.
type Profile struct {
	CC       string
	CPP      string
	Compiler compiler.Config
}

// Config is a fully resolved project configuration, ready to drive a build.
type Config struct {
	Project Project
	Debug   Profile
	Release Profile
}

// Default returns the configuration used when no ccbuild.toml is present,
// or as the base that a project file's tables are layered onto.
func Default() Config {
	return Config{
		Project: Project{Name: "main", SrcRoot: "src", BinRoot: "bin"},
		Debug: Profile{
			Compiler: compiler.Config{
				Optimization: compiler.OptimizationNone(),
				Asan:         true,
				DebugSymbols: true,
				CStd:         compiler.StdNumber(17),
				CppStd:       compiler.StdNumber(20),
				Warn:         []string{"all"},
			},
		},
		Release: Profile{
			Compiler: compiler.Config{
				Optimization: compiler.OptimizationAll(),
				CStd:         compiler.StdNumber(17),
				CppStd:       compiler.StdNumber(20),
				Defines:      []compiler.Define{{Name: "NDEBUG"}},
				Warn:         []string{"all"},
			},
		},
	}
}

// Load reads path as TOML and resolves it against Default().
func Load(path string) (Config, error) {
	var raw rawConfig
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return Config{}, err
	}
	return raw.resolve(), nil
}

// rawConfig mirrors the TOML schema: every field optional, so a project
// file can override exactly as much or as little as it wants.
type rawConfig struct {
	Project rawProject `toml:"project"`
	Build   *rawBuild  `toml:"build"`
	Debug   *rawBuild  `toml:"debug_build"`
	Release *rawBuild  `toml:"release_build"`
}

type rawProject struct {
	Name string `toml:"name"`
	Src  string `toml:"src"`
	Bin  string `toml:"bin"`
}

type rawBuild struct {
	CC             string             `toml:"cc"`
	CPP            string             `toml:"cpp"`
	CompilerConfig *rawCompilerConfig `toml:"compiler_configuration"`
}

type rawCompilerConfig struct {
	Optimization string   `toml:"optimization"` // "none", "all", or a literal level like "2"
	Asan         *bool    `toml:"asan"`
	DbgSymbols   *bool    `toml:"dbg_symbols"`
	CStd         string   `toml:"c_std"`
	CppStd       string   `toml:"cpp_std"`
	Defines      []string `toml:"defines"` // "NAME" or "NAME=VALUE"
	Warn         []string `toml:"warn"`
	NoWarn       []string `toml:"no_warn"`
	Args         []string `toml:"args"`
}

func (r rawConfig) resolve() Config {
	def := Default()

	proj := def.Project
	if r.Project.Name != "" {
		proj.Name = r.Project.Name
	}
	if r.Project.Src != "" {
		proj.SrcRoot = r.Project.Src
	}
	if r.Project.Bin != "" {
		proj.BinRoot = r.Project.Bin
	}

	debugBinRoot := filepath.Join(proj.BinRoot, "debug")
	releaseBinRoot := filepath.Join(proj.BinRoot, "release")

	debug := resolveProfile(def.Debug, r.Build, r.Debug, proj.SrcRoot, debugBinRoot)
	release := resolveProfile(def.Release, r.Build, r.Release, proj.SrcRoot, releaseBinRoot)

	return Config{Project: proj, Debug: debug, Release: release}
}

func resolveProfile(base Profile, common, specific *rawBuild, srcRoot, binRoot string) Profile {
	out := base
	out.Compiler.SrcRoot = srcRoot
	out.Compiler.BinRoot = binRoot

	// Scalars: the profile-specific table overrides the shared [build]
	// table, which overrides the compiled-in default, matching
	// serde_config.rs's `self.cc.or(common.cc)` chains.
	if common != nil && common.CC != "" {
		out.CC = common.CC
	}
	if specific != nil && specific.CC != "" {
		out.CC = specific.CC
	}
	if common != nil && common.CPP != "" {
		out.CPP = common.CPP
	}
	if specific != nil && specific.CPP != "" {
		out.CPP = specific.CPP
	}

	var commonCC, specificCC *rawCompilerConfig
	if common != nil {
		commonCC = common.CompilerConfig
	}
	if specific != nil {
		specificCC = specific.CompilerConfig
	}
	applyCompilerConfig(&out.Compiler, commonCC, specificCC)

	return out
}

// applyCompilerConfig layers common then specific onto dst's baked-in
// default, matching serde_config.rs's SerdeCompilerConfig::resolve_*:
// scalar fields (optimization, asan, ...) take specific.or(common), but
// list fields (warn, no_warn, defines, args) are concatenated when BOTH
// common and specific set them, and only replace the default outright when
// just one of the two sets them (vec_join_or!).
func applyCompilerConfig(dst *compiler.Config, common, specific *rawCompilerConfig) {
	scalar := func(pick func(*rawCompilerConfig) bool) *rawCompilerConfig {
		if specific != nil && pick(specific) {
			return specific
		}
		if common != nil && pick(common) {
			return common
		}
		return nil
	}

	if s := scalar(func(c *rawCompilerConfig) bool { return c.Optimization != "" }); s != nil {
		switch s.Optimization {
		case "none":
			dst.Optimization = compiler.OptimizationNone()
		case "all":
			dst.Optimization = compiler.OptimizationAll()
		default:
			if n, ok := parseInt(s.Optimization); ok {
				dst.Optimization = compiler.OptimizationLevel(n)
			}
		}
	}
	if s := scalar(func(c *rawCompilerConfig) bool { return c.Asan != nil }); s != nil {
		dst.Asan = *s.Asan
	}
	if s := scalar(func(c *rawCompilerConfig) bool { return c.DbgSymbols != nil }); s != nil {
		dst.DebugSymbols = *s.DbgSymbols
	}
	if s := scalar(func(c *rawCompilerConfig) bool { return c.CStd != "" }); s != nil {
		dst.CStd = parseStd(s.CStd)
	}
	if s := scalar(func(c *rawCompilerConfig) bool { return c.CppStd != "" }); s != nil {
		dst.CppStd = parseStd(s.CppStd)
	}

	dst.Defines = joinOr(dst.Defines, parseDefinesPtr(common), parseDefinesPtr(specific))
	dst.Warn = joinOrStrings(dst.Warn, common, specific, func(c *rawCompilerConfig) []string { return c.Warn })
	dst.NoWarn = joinOrStrings(dst.NoWarn, common, specific, func(c *rawCompilerConfig) []string { return c.NoWarn })
	dst.Args = joinOrStrings(dst.Args, common, specific, func(c *rawCompilerConfig) []string { return c.Args })
}

func parseStd(s string) compiler.Std {
	if n, ok := parseInt(s); ok {
		return compiler.StdNumber(n)
	}
	return compiler.StdName(s)
}

// joinOrStrings implements vec_join_or! for a plain []string list field.
func joinOrStrings(def []string, common, specific *rawCompilerConfig, get func(*rawCompilerConfig) []string) []string {
	var c, s []string
	if common != nil {
		c = get(common)
	}
	if specific != nil {
		s = get(specific)
	}
	switch {
	case len(c) > 0 && len(s) > 0:
		return append(append([]string{}, c...), s...)
	case len(c) > 0:
		return c
	case len(s) > 0:
		return s
	default:
		return def
	}
}

func parseDefinesPtr(c *rawCompilerConfig) []string {
	if c == nil {
		return nil
	}
	return c.Defines
}

// joinOr implements vec_join_or! for the Defines field, which needs
// parsing ("NAME=VALUE") rather than being used as raw strings.
func joinOr(def []compiler.Define, commonRaw, specificRaw []string) []compiler.Define {
	switch {
	case len(commonRaw) > 0 && len(specificRaw) > 0:
		return append(parseDefines(commonRaw), parseDefines(specificRaw)...)
	case len(commonRaw) > 0:
		return parseDefines(commonRaw)
	case len(specificRaw) > 0:
		return parseDefines(specificRaw)
	default:
		return def
	}
}

func parseDefines(raw []string) []compiler.Define {
	out := make([]compiler.Define, 0, len(raw))
	for _, d := range raw {
		eq := -1
		for i := 0; i < len(d); i++ {
			if d[i] == '=' {
				eq = i
				break
			}
		}
		if eq == -1 {
			out = append(out, compiler.Define{Name: d})
		} else {
			out = append(out, compiler.Define{Name: d[:eq], Value: d[eq+1:], HasValue: true})
		}
	}
	return out
}

func parseInt(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

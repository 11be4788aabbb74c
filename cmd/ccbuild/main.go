package main

import (
	"fmt"
	"os"

	"github.com/ccbuild/ccbuild/internal/common"
	"github.com/ccbuild/ccbuild/internal/project"
)

const usage = `ccbuild <action> [flags] [-- app_args]

Actions:
  clean        remove the configured binary root(s)
  build        resolve and build the configured target
  run          build, then run the target with app_args
  new <dir>    scaffold a new project
  help         print this message

Flags:
  -r, --release     build with the release profile instead of debug
  -j, --jobs <N>    worker budget (default: num CPUs - 2, min 1)
  -v, --verbose     also log each spawned command to stderr with a timestamp
  --                everything after is forwarded as app_args
`

func failed(v ...interface{}) {
	fmt.Fprint(os.Stderr, "\033[31mFailure:\033[0m ")
	fmt.Fprintln(os.Stderr, v...)
	os.Exit(1)
}

func isHelp(arg string) bool {
	switch arg {
	case "help", "h", "-h", "-?", "--help":
		return true
	default:
		return false
	}
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		fmt.Print(usage)
		if len(args) == 0 {
			os.Exit(1)
		}
		os.Exit(0)
	}

	action := args[0]
	rest := args[1:]

	if action == "new" {
		if len(rest) == 0 {
			failed("'new' requires a directory argument")
		}
		if err := project.New(rest[0]); err != nil {
			failed(err)
		}
		return
	}

	var release, verbose bool
	workers := 0
	var appArgs []string

	i := 0
	for i < len(rest) {
		arg := rest[i]
		switch {
		case arg == "--":
			appArgs = rest[i+1:]
			i = len(rest)
		case arg == "-r" || arg == "--release":
			release = true
			i++
		case arg == "-v" || arg == "--verbose":
			verbose = true
			i++
		case arg == "-j" || arg == "--jobs":
			if i+1 >= len(rest) {
				failed("-j/--jobs requires a value")
			}
			n, err := parsePositiveInt(rest[i+1])
			if err != nil {
				failed("invalid -j/--jobs value:", rest[i+1])
			}
			workers = n
			i += 2
		default:
			failed("unknown argument:", arg)
		}
	}

	root, err := os.Getwd()
	if err != nil {
		failed(err)
	}

	verbosity := 0
	if verbose {
		verbosity = 1
	}
	logger, err := common.NewLogger("stderr", verbosity, false)
	if err != nil {
		failed(err)
	}

	proj, err := project.Load(root, release, logger, verbose, workers)
	if err != nil {
		failed(err)
	}

	switch action {
	case "clean":
		if err := proj.Clean(); err != nil {
			failed(err)
		}
	case "build":
		if _, err := proj.Build(); err != nil {
			failed(err)
		}
	case "run":
		if err := proj.Run(appArgs); err != nil {
			if pf, ok := err.(*common.ProcessFailedError); ok && pf.Code != nil {
				os.Exit(*pf.Code)
			}
			failed(err)
		}
	default:
		fmt.Print(usage)
		failed("unknown action:", action)
	}
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		n = n*10 + int(c-'0')
	}
	if n <= 0 {
		n = 1
	}
	return n, nil
}

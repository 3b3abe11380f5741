package main

import (
	"os"
	"strings"

	"treno/internal/cli"
	"treno/internal/model"
)

func isDateKey(s string) bool {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "today") {
		return true
	}
	_, err := model.ParseDateKey(s)
	return err == nil
}

func rewriteDirectDateLookupArgs(argv []string) []string {
	// Convenience: `treno <date>` works like `treno records list --date <date>`.
	//
	// Cobra treats the first non-flag token as a subcommand, so we rewrite argv before parsing.
	// Persistent flags may come first (e.g. `treno --dir ... 2024-03-10`), so look for the
	// first positional token, not just argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--dir":       true,
		"--backend":   true,
		"--format":    true,
		"--log-level": true,
		"--log-file":  true,
	}

	for i := 1; i < len(argv); i++ {
		a := argv[i]
		if a == "--" {
			if i+1 < len(argv) && isDateKey(argv[i+1]) {
				return withDateLookup(argv, i+1)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			// --flag=value and bool flags carry no separate value.
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}

		if isDateKey(a) {
			return withDateLookup(argv, i)
		}
		return argv
	}
	return argv
}

func withDateLookup(argv []string, i int) []string {
	out := make([]string, 0, len(argv)+3)
	out = append(out, argv[:i]...)
	out = append(out, "records", "list", "--date", argv[i])
	return append(out, argv[i+1:]...)
}

func main() {
	os.Args = rewriteDirectDateLookupArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// layout-lint checks keyboard layout definition files against the
// layout schema and reports fingerprints, so layout authors can catch
// mistakes before dropping a file into the layout directory.
//
// Usage:
//
//	go run tools/layout-lint.go layouts/
//	go run tools/layout-lint.go -quiet layouts/avro.json
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"kolom/internal/layouts"
)

func main() {
	quiet := flag.Bool("quiet", false, "Only report problems")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: layout-lint [-quiet] <file-or-directory>...")
		os.Exit(2)
	}

	failed := 0
	for _, arg := range flag.Args() {
		info, err := os.Stat(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "layout-lint: %v\n", err)
			failed++
			continue
		}

		var paths []string
		if info.IsDir() {
			entries, err := os.ReadDir(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "layout-lint: %v\n", err)
				failed++
				continue
			}
			for _, e := range entries {
				if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
					paths = append(paths, filepath.Join(arg, e.Name()))
				}
			}
		} else {
			paths = []string{arg}
		}

		for _, path := range paths {
			if !lint(path, *quiet) {
				failed++
			}
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "layout-lint: %d file(s) failed\n", failed)
		os.Exit(1)
	}
}

func lint(path string, quiet bool) bool {
	l, err := layouts.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL %s\n  %v\n", path, err)
		return false
	}

	if !quiet {
		fmt.Printf("ok   %s\n", path)
		fmt.Printf("     name=%s version=%d language=%s patterns=%d\n",
			l.Name, l.Version, l.Language, len(l.Patterns))
		fmt.Printf("     fingerprint=%s\n", l.Fingerprint)
	}
	return true
}

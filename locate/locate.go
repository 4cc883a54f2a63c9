// Package locate resolves input file specifications into an ordered list of
// paths: explicit paths, glob patterns, and list files naming one path (or
// pattern) per line.
package locate

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/kbukum/fwaudio/errors"
)

// Locator resolves inputs against a filesystem.
type Locator struct {
	fs afero.Fs
}

// New returns a Locator over fs. A nil fs means the OS filesystem.
func New(fs afero.Fs) *Locator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Locator{fs: fs}
}

// Files resolves inputs and lists on the OS filesystem.
func Files(inputs, lists []string, failIfEmpty bool) ([]string, error) {
	return New(nil).Locate(inputs, lists, failIfEmpty)
}

// Locate expands inputs, then the entries of each list file, preserving the
// given order. Glob matches are sorted. Directories and plain paths that do
// not exist are dropped, the same as a pattern that matches nothing.
// With failIfEmpty, an empty result is a NO_INPUTS error.
func (l *Locator) Locate(inputs, lists []string, failIfEmpty bool) ([]string, error) {
	var files []string
	var merr *multierror.Error

	for _, in := range inputs {
		matched, err := l.expand(in)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		files = append(files, matched...)
	}

	for _, list := range lists {
		entries, err := l.readList(list)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		for _, entry := range entries {
			matched, err := l.expand(entry)
			if err != nil {
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", list, err))
				continue
			}
			files = append(files, matched...)
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		return nil, errors.InvalidInput("input", "cannot resolve input files").WithCause(err)
	}
	if failIfEmpty && len(files) == 0 {
		return nil, errors.NoInputs(inputs, lists)
	}
	return files, nil
}

func (l *Locator) expand(input string) ([]string, error) {
	if !hasMeta(input) {
		return l.existing(input)
	}
	// afero.Glob skips unreadable directories before it parses the pattern.
	if _, err := filepath.Match(input, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", input, err)
	}
	matches, err := afero.Glob(l.fs, input)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", input, err)
	}
	out := matches[:0]
	for _, m := range matches {
		if dir, _ := afero.IsDir(l.fs, m); !dir {
			out = append(out, m)
		}
	}
	return out, nil
}

func (l *Locator) existing(path string) ([]string, error) {
	ok, err := afero.Exists(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}
	if !ok {
		return nil, nil
	}
	if dir, _ := afero.IsDir(l.fs, path); dir {
		return nil, nil
	}
	return []string{path}, nil
}

// readList returns the non-blank lines of a list file.
func (l *Locator) readList(path string) ([]string, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read input list: %w", err)
	}
	var entries []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			entries = append(entries, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan input list %s: %w", path, err)
	}
	return entries, nil
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}

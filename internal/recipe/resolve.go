// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package recipe

import (
	"io"
	"os"
	"path/filepath"

	"github.com/synchrotron-i07/xrrreduce/internal/xrrerrors"
)

// ResolveDataFile locates a declared raw data file. If path exists, it is
// returned unchanged. Otherwise the current working directory and every
// ancestor of recipePath are searched recursively for a file with the same
// basename as path. Exactly one candidate must be found, logged to w (if
// non-nil); zero or multiple candidates produce xrrerrors.FileNotFound.
func ResolveDataFile(path, recipePath string, w io.Writer) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	base := filepath.Base(path)
	seen := map[string]bool{}
	var candidates []string

	roots := ancestorRoots(recipePath)
	cwd, err := os.Getwd()
	if err == nil {
		roots = append(roots, cwd)
	}

	for _, root := range roots {
		if seen[root] {
			continue
		}
		seen[root] = true
		_ = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
			if err != nil || info == nil || info.IsDir() {
				return nil
			}
			if filepath.Base(p) == base {
				candidates = append(candidates, p)
			}
			return nil
		})
	}

	candidates = dedupe(candidates)
	if len(candidates) == 1 {
		if w != nil {
			io.WriteString(w, "resolved "+path+" -> "+candidates[0]+"\n")
		}
		return candidates[0], nil
	}
	return "", xrrerrors.New(xrrerrors.FileNotFound, "could not uniquely resolve %q (found %d candidates)", path, len(candidates))
}

// ancestorRoots returns every ancestor directory of recipePath, from its
// immediate parent up to the filesystem root.
func ancestorRoots(recipePath string) []string {
	dir := filepath.Dir(recipePath)
	var roots []string
	for {
		roots = append(roots, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return roots
}

func dedupe(paths []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

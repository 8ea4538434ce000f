package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoFiles is returned by Scan when no input path yields a usable file.
var ErrNoFiles = errors.New("no valid files found")

// Scan expands the given file and directory arguments into catalog entries.
// Directories are walked recursively. When filter is non-empty only files
// whose extension (without the dot, case-insensitive) appears in it are
// kept. Non-regular and empty files are skipped with a warning. Entries are
// sorted by name so the peer sees a stable index order.
func Scan(paths []string, filter []string) ([]Entry, error) {
	allowed := make(map[string]bool, len(filter))
	for _, ext := range filter {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = true
		}
	}

	var entries []Entry
	seen := make(map[string]bool)

	addFile := func(path string, info fs.FileInfo) {
		if len(allowed) > 0 && !allowed[extensionOf(path)] {
			return
		}
		if err := validate(info); err != nil {
			log.Printf("Skipping %s: %v", info.Name(), err)
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			log.Printf("Skipping %s: %v", info.Name(), err)
			return
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		entries = append(entries, Entry{
			Name: info.Name(),
			Path: abs,
			Size: uint64(info.Size()),
		})
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			continue
		}
		if !info.IsDir() {
			addFile(path, info)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Printf("Skipping %s: %v", p, err)
				return nil
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				log.Printf("Skipping %s: %v", p, err)
				return nil
			}
			addFile(p, info)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory %s: %w", path, err)
		}
	}

	if len(entries) == 0 {
		return nil, ErrNoFiles
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func validate(info fs.FileInfo) error {
	if !info.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	if info.Size() == 0 {
		return errors.New("file is empty")
	}
	return nil
}

func extensionOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ScannedFile represents an ingestible file found during a directory scan.
type ScannedFile struct {
	RelPath string // Relative path from the scan root with forward slashes (e.g., "guides/setup.md")
	Folder  string // Folder part of RelPath, "" for root-level files
	AbsPath string
}

var scannedExtensions = map[string]struct{}{
	".md":       {},
	".markdown": {},
	".txt":      {},
	".pdf":      {},
}

// Scan walks root and returns markdown, text and PDF files in lexical order.
// Hidden directories (".git", ".obsidian") are skipped.
func Scan(ctx context.Context, root string) ([]ScannedFile, error) {
	var files []ScannedFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		file, ok, err := scannedFile(root, path)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	return files, nil
}

// scannedFile describes path relative to root. It reports false for files
// the pipeline does not ingest.
func scannedFile(root, path string) (ScannedFile, bool, error) {
	if _, ok := scannedExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
		return ScannedFile{}, false, nil
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return ScannedFile{}, false, fmt.Errorf("failed to compute relative path for %s: %w", path, err)
	}
	relPath = filepath.ToSlash(relPath)

	folder := filepath.ToSlash(filepath.Dir(relPath))
	if folder == "." {
		folder = ""
	}

	return ScannedFile{
		RelPath: relPath,
		Folder:  folder,
		AbsPath: path,
	}, true, nil
}

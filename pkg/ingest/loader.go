package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// supportedExtensions lists the file types the local loader accepts.
var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// LoadPath loads a single file, or walks a directory collecting every
// supported file beneath it.
func LoadPath(path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if info.IsDir() {
		return loadDirectory(path)
	}
	doc, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	return []Document{doc}, nil
}

func loadDirectory(dir string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		doc, err := loadFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: walking %s: %w", dir, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("ingest: no supported files under %s", dir)
	}
	return docs, nil
}

func loadFile(path string) (Document, error) {
	if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
		return Document{}, fmt.Errorf("ingest: unsupported file type: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("ingest: reading %s: %w", path, err)
	}
	return Document{Content: string(data), Reference: path}, nil
}

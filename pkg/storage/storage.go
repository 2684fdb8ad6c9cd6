// Package storage provides the workspace file store backed by a directory
// on the local filesystem.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"osgpt/pkg/schema"
)

// Dir is a schema.FileStore rooted at a single directory. File names are
// flat; path separators and parent traversal are rejected so agents cannot
// escape the workspace root.
type Dir struct {
	root string
}

// NewDir creates the root directory if needed and returns a store over it.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace root: %w", err)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute workspace directory.
func (d *Dir) Root() string { return d.root }

func (d *Dir) resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	if strings.ContainsAny(name, `/\`) || name == ".." || strings.HasPrefix(name, "..") {
		return "", fmt.Errorf("file name %q must not contain path separators", name)
	}
	return filepath.Join(d.root, name), nil
}

// ReadFile returns the content of a workspace file.
func (d *Dir) ReadFile(name string) (string, error) {
	path, err := d.resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file %q does not exist in the workspace", name)
		}
		return "", fmt.Errorf("reading %q: %w", name, err)
	}
	return string(data), nil
}

// WriteFile creates or overwrites a workspace file and returns its
// attachment record.
func (d *Dir) WriteFile(name, content string) (schema.Attachment, error) {
	path, err := d.resolve(name)
	if err != nil {
		return schema.Attachment{}, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return schema.Attachment{}, fmt.Errorf("writing %q: %w", name, err)
	}
	return d.stat(name, path)
}

// ListFiles returns attachment records for every regular file in the
// workspace, sorted by name.
func (d *Dir) ListFiles() ([]schema.Attachment, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("listing workspace files: %w", err)
	}
	var out []schema.Attachment
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		att, err := d.stat(e.Name(), filepath.Join(d.root, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Filename < out[b].Filename })
	return out, nil
}

func (d *Dir) stat(name, path string) (schema.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return schema.Attachment{}, fmt.Errorf("stat %q: %w", name, err)
	}
	return schema.Attachment{
		URL:        "file://" + path,
		Filename:   name,
		Filesize:   info.Size(),
		UploadedAt: info.ModTime().UTC(),
	}, nil
}

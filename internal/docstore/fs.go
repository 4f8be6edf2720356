package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// FS is a Store backed by the local filesystem. Relative paths resolve
// against Root; absolute paths are used as given.
type FS struct {
	Root string
	log  *zap.Logger
}

// NewFS creates an FS rooted at root. An empty root means the working
// directory.
func NewFS(root string, log *zap.Logger) *FS {
	if log == nil {
		log = zap.NewNop()
	}
	return &FS{Root: root, log: log}
}

func (s *FS) resolve(path string) string {
	if s.Root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.Root, path)
}

func (s *FS) readBytes(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "docstore: context cancelled")
	}
	b, err := os.ReadFile(s.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Path: path}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: read %s", path)
	}
	return b, nil
}

// decode returns b as text. Input that is not valid UTF-8 is read as
// ISO-8859-1, which every byte sequence decodes under.
func (s *FS) decode(path string, b []byte) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}
	s.log.Warn("docstore: not valid UTF-8, decoding as latin-1", zap.String("path", path))
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", eris.Wrapf(err, "docstore: decode %s", path)
	}
	return string(out), nil
}

// ReadText implements Store.
func (s *FS) ReadText(ctx context.Context, path string) (string, error) {
	b, err := s.readBytes(ctx, path)
	if err != nil {
		return "", err
	}
	return s.decode(path, b)
}

// WriteText implements Store.
func (s *FS) WriteText(ctx context.Context, path, content string) error {
	return s.writeBytes(ctx, path, []byte(content))
}

func (s *FS) writeBytes(ctx context.Context, path string, b []byte) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "docstore: context cancelled")
	}
	full := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return eris.Wrapf(err, "docstore: create dir for %s", path)
	}
	if err := os.WriteFile(full, b, 0o644); err != nil {
		return eris.Wrapf(err, "docstore: write %s", path)
	}
	s.log.Debug("docstore: wrote document", zap.String("path", path), zap.Int("bytes", len(b)))
	return nil
}

// ReadRows implements Store. The format is chosen by extension.
func (s *FS) ReadRows(ctx context.Context, path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		text, err := s.ReadText(ctx, path)
		if err != nil {
			return nil, err
		}
		rows, err := readCSV(strings.NewReader(text))
		if err != nil {
			return nil, eris.Wrapf(err, "docstore: parse %s", path)
		}
		return rows, nil
	case ".xlsx":
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "docstore: context cancelled")
		}
		full := s.resolve(path)
		if _, err := os.Stat(full); errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		rows, err := readXLSX(full)
		if err != nil {
			return nil, eris.Wrapf(err, "docstore: parse %s", path)
		}
		return rows, nil
	default:
		return nil, eris.Errorf("docstore: unsupported tabular format %q", filepath.Ext(path))
	}
}

// ReadJSON implements Store.
func (s *FS) ReadJSON(ctx context.Context, path string, v any) error {
	b, err := s.readBytes(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return eris.Wrapf(err, "docstore: decode json %s", path)
	}
	return nil
}

// WriteJSON implements Store. Output is indented with two spaces and keeps
// non-ASCII text and HTML characters as written.
func (s *FS) WriteJSON(ctx context.Context, path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrapf(err, "docstore: encode json %s", path)
	}
	return s.writeBytes(ctx, path, buf.Bytes())
}

// List implements Store. ext is matched case-insensitively and may be given
// with or without the leading dot. Subdirectories are not descended.
func (s *FS) List(ctx context.Context, dir, ext string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "docstore: context cancelled")
	}
	entries, err := os.ReadDir(s.resolve(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Path: dir}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: list %s", dir)
	}

	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext != "" && strings.ToLower(filepath.Ext(e.Name())) != ext {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Exists reports whether path exists.
func (s *FS) Exists(path string) bool {
	_, err := os.Stat(s.resolve(path))
	return err == nil
}

var _ Store = (*FS)(nil)

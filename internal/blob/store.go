// Package blob provides durable byte storage for raw uploaded files and
// time-limited read access to them.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the named blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Info describes a stored blob. Checksum is the hex SHA-256 of the content,
// set only on writes.
type Info struct {
	Name        string    `json:"name"`
	Container   string    `json:"container"`
	URI         string    `json:"uri"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	Checksum    string    `json:"checksum,omitempty"`
	ModifiedAt  time.Time `json:"modifiedAt"`
}

// Store is the blob store adapter consumed by the pipelines. Put overwrites
// an existing blob of the same name; generated names carry a random prefix so
// collisions are never expected in normal operation.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, contentType string) (*Info, error)
	Open(ctx context.Context, name string) (io.ReadCloser, *Info, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]Info, error)
	URL(name string) string
	Container() string
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// MakeBlobName builds a collision-resistant blob name from the original
// filename: a fresh UUID prefix plus the sanitized name.
func MakeBlobName(original string) string {
	base := filepath.Base(original)
	base = unsafeNameChars.ReplaceAllString(base, "_")
	return fmt.Sprintf("%s_%s", uuid.NewString(), base)
}

// FSStore stores blobs as files under a container directory on a local
// volume. Writes go through a temp file and rename so a partially written
// upload is never visible.
type FSStore struct {
	dir       string
	container string
	baseURL   string
}

var _ Store = (*FSStore)(nil)

func NewFSStore(dir, container, baseURL string) (*FSStore, error) {
	root := filepath.Join(dir, container)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob container dir: %w", err)
	}
	return &FSStore{
		dir:       root,
		container: container,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *FSStore) Container() string {
	return s.container
}

// URL returns the durable (unsigned) URI for a blob name.
func (s *FSStore) URL(name string) string {
	return fmt.Sprintf("%s/files/%s", s.baseURL, name)
}

func (s *FSStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *FSStore) Put(ctx context.Context, name string, r io.Reader, contentType string) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst, err := s.path(name)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	sum := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, sum), r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return nil, fmt.Errorf("failed to finalize blob: %w", err)
	}

	return &Info{
		Name:        name,
		Container:   s.container,
		URI:         s.URL(name),
		Size:        size,
		ContentType: contentType,
		Checksum:    hex.EncodeToString(sum.Sum(nil)),
		ModifiedAt:  time.Now().UTC(),
	}, nil
}

func (s *FSStore) Open(ctx context.Context, name string) (io.ReadCloser, *Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	p, err := s.path(name)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open blob: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat blob: %w", err)
	}

	return f, &Info{
		Name:       name,
		Container:  s.container,
		URI:        s.URL(name),
		Size:       stat.Size(),
		ModifiedAt: stat.ModTime().UTC(),
	}, nil
}

func (s *FSStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := s.path(name)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *FSStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p, err := s.path(name)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *FSStore) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:       e.Name(),
			Container:  s.container,
			URI:        s.URL(e.Name()),
			Size:       fi.Size(),
			ModifiedAt: fi.ModTime().UTC(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ModifiedAt.After(infos[j].ModifiedAt) })
	return infos, nil
}

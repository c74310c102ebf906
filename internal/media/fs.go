package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSStore keeps blobs under Root and publishes them below BaseURL.
type FSStore struct {
	Root    string
	BaseURL string
}

func NewFSStore(root, baseURL string) FSStore {
	return FSStore{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (s FSStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	return filepath.Join(s.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Put streams r into a temp file beside the target and renames it into place.
// Reads beyond limit abort the write with ErrTooLarge.
func (s FSStore) Put(ctx context.Context, key string, r io.Reader, limit int64) (Object, error) {
	dest, err := s.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Object{}, fmt.Errorf("create media dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	src := io.Reader(ctxReader{ctx: ctx, r: r})
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		return Object{}, fmt.Errorf("write media: %w", err)
	}
	if limit > 0 && n > limit {
		return Object{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	if err := tmp.Sync(); err != nil {
		return Object{}, fmt.Errorf("sync media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("close media: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return Object{}, fmt.Errorf("publish media: %w", err)
	}
	committed = true
	return Object{Key: key, URL: s.URL(key), Size: n}, nil
}

// Move relocates a stored blob, used when a version number has to be reassigned.
func (s FSStore) Move(_ context.Context, from, to string) (Object, error) {
	src, err := s.path(from)
	if err != nil {
		return Object{}, err
	}
	dest, err := s.path(to)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Object{}, fmt.Errorf("create media dir: %w", err)
	}
	if err := os.Rename(src, dest); err != nil {
		return Object{}, fmt.Errorf("move media: %w", err)
	}
	st, err := os.Stat(dest)
	if err != nil {
		return Object{}, err
	}
	return Object{Key: to, URL: s.URL(to), Size: st.Size()}, nil
}

func (s FSStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns the public URL for key.
func (s FSStore) URL(key string) string {
	return s.BaseURL + "/" + strings.TrimPrefix(key, "/")
}

// Handler serves stored blobs. Mount it under BaseURL with the prefix stripped.
func (s FSStore) Handler() http.Handler {
	return http.FileServer(noListing{http.Dir(s.Root)})
}

type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Package media stores uploaded video blobs and decides which files count as video.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"campaignline/internal/domain"
)

var (
	// ErrTooLarge is returned when a file exceeds the configured byte ceiling.
	ErrTooLarge = errors.New("file exceeds upload limit")
	// ErrNotVideo is returned for files declared as a non-video type, or undeclared
	// files without a video extension.
	ErrNotVideo = errors.New("file is not a recognized video")
)

// Object describes a stored blob.
type Object struct {
	Key  string
	URL  string
	Size int64
}

// Store is the media submission store. Put and Move overwrite an existing key and
// must leave nothing behind when they fail.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, limit int64) (Object, error)
	Move(ctx context.Context, from, to string) (Object, error)
	Delete(ctx context.Context, key string) error
}

// Policy decides whether an upload is acceptable before anything is written.
type Policy struct {
	MaxBytes   int64
	Extensions []string
}

// Check validates the declared file metadata. size may be -1 when the length is not
// known up front; the store then enforces MaxBytes while streaming. It returns the
// extension to store the file under.
func (p Policy) Check(fileName, contentType string, size int64) (string, error) {
	if size > p.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes over %d", ErrTooLarge, size, p.MaxBytes)
	}
	if size == 0 {
		return "", fmt.Errorf("%w: empty file", ErrNotVideo)
	}
	ext := strings.ToLower(path.Ext(fileName))
	mediaType := ""
	if strings.TrimSpace(contentType) != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return "", fmt.Errorf("%w: unreadable content type %q", ErrNotVideo, contentType)
		}
		mediaType = parsed
	}
	switch {
	case mediaType == "" || mediaType == "application/octet-stream":
		// Undeclared type: the extension decides.
		if p.knownExt(ext) {
			return ext, nil
		}
		return "", fmt.Errorf("%w: %q (%s)", ErrNotVideo, fileName, contentType)
	case !strings.HasPrefix(mediaType, "video/"):
		return "", fmt.Errorf("%w: %q declared as %s", ErrNotVideo, fileName, mediaType)
	}
	if p.knownExt(ext) {
		return ext, nil
	}
	if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
		for _, e := range exts {
			if p.knownExt(e) {
				return e, nil
			}
		}
		return exts[0], nil
	}
	return ".mp4", nil
}

func (p Policy) knownExt(ext string) bool {
	if ext == "" {
		return false
	}
	for _, e := range p.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// Key builds the storage key for a version:
// campaigns/<campaign>/<user>/<main|weekN>[-clean]/v<version>-<unixms>[-<token>]<ext>.
// token keeps two writers that resolved the same version from sharing a blob.
func Key(campaignID, userID string, slot int, track string, version int, at time.Time, token, ext string) string {
	dir := domain.SlotLabel(slot)
	if track == domain.TrackCleanVideo {
		dir += "-clean"
	}
	name := fmt.Sprintf("v%d-%d", version, at.UnixMilli())
	if token != "" {
		name += "-" + segment(token)
	}
	return path.Join("campaigns", segment(campaignID), segment(userID), dir, name+ext)
}

func segment(v string) string {
	v = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, v)
	v = strings.ReplaceAll(v, "..", "_")
	if v == "" || v == "." {
		return "_"
	}
	return v
}

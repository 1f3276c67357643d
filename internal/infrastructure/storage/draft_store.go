package storage

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
)

// FileDraftStore keeps each draft as <owner>/<key>.json under a FileStorage root
type FileDraftStore struct {
	files port.FileStorage
}

// NewFileDraftStore creates a draft store on top of files
func NewFileDraftStore(files port.FileStorage) *FileDraftStore {
	return &FileDraftStore{files: files}
}

// Scope returns a store limited to owner's directory
func (s *FileDraftStore) Scope(owner string) port.DraftStore {
	return &fileDraftScope{files: s.files, dir: escapeSegment(owner)}
}

// escapeSegment maps an arbitrary owner or key onto one path segment that
// cannot be "." or ".."
func escapeSegment(s string) string {
	if s == "" {
		return "_"
	}
	esc := url.PathEscape(s)
	if strings.HasPrefix(esc, ".") {
		esc = "%2E" + esc[1:]
	}
	return esc
}

type fileDraftScope struct {
	files port.FileStorage
	dir   string
}

func (s *fileDraftScope) path(key string) string {
	return path.Join(s.dir, escapeSegment(key)+".json")
}

func (s *fileDraftScope) Get(ctx context.Context, key string) ([]byte, error) {
	return s.files.Read(ctx, s.path(key))
}

func (s *fileDraftScope) Set(ctx context.Context, key string, value []byte) error {
	return s.files.Save(ctx, s.path(key), value)
}

func (s *fileDraftScope) Delete(ctx context.Context, key string) error {
	return s.files.Delete(ctx, s.path(key))
}

var _ port.DraftStoreProvider = (*FileDraftStore)(nil)

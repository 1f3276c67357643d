package wizard

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
)

const mb = 1 << 20

// DefaultAllowedTypes is the mime allow-list for supporting documents
var DefaultAllowedTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"text/csv",
	"text/plain",
}

// UploadPolicy decides, before any transfer, whether offered files may join
// a document list
type UploadPolicy struct {
	MaxFiles     int
	MaxFileSize  int64
	MaxTotalSize int64
	AllowedTypes []string
}

// DefaultUploadPolicy allows 5 files of up to 10 MB each and 50 MB in total
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxFiles:     5,
		MaxFileSize:  10 * mb,
		MaxTotalSize: 50 * mb,
		AllowedTypes: DefaultAllowedTypes,
	}
}

func normalizeMime(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

func (p UploadPolicy) allowed(mimeType string) bool {
	mimeType = normalizeMime(mimeType)
	for _, t := range p.AllowedTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

// Accept checks files against existing and returns them as pending
// documents. The batch is accepted or rejected as a whole.
func (p UploadPolicy) Accept(existing []entity.Document, files []entity.FileDescriptor) ([]entity.Document, error) {
	if len(existing)+len(files) > p.MaxFiles {
		return nil, fmt.Errorf("%w: at most %d files allowed", ErrTooManyFiles, p.MaxFiles)
	}

	type key struct {
		name string
		size int64
	}
	seen := make(map[key]bool, len(existing)+len(files))
	var total int64
	for _, d := range existing {
		seen[key{d.Name, d.Size}] = true
		total += d.Size
	}

	accepted := make([]entity.Document, 0, len(files))
	for _, f := range files {
		if f.Size <= 0 {
			return nil, fmt.Errorf("%w: %s has size %d", ErrInvalidFileSize, f.Name, f.Size)
		}
		if f.Size > p.MaxFileSize {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, f.Name, p.MaxFileSize)
		}
		if !p.allowed(f.MimeType) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, f.Name, f.MimeType)
		}
		k := key{f.Name, f.Size}
		if seen[k] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFile, f.Name)
		}
		seen[k] = true
		total += f.Size

		accepted = append(accepted, entity.Document{
			ID:          f.ID,
			Name:        f.Name,
			Size:        f.Size,
			MimeType:    normalizeMime(f.MimeType),
			UploadState: entity.UploadStatePending,
			Progress:    0,
		})
	}

	if total > p.MaxTotalSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTotalSizeExceeded, p.MaxTotalSize)
	}
	return accepted, nil
}

// readDocuments reads the document list at path. Malformed entries keep
// their defaults rather than failing the read.
func readDocuments(r Record, path string) []entity.Document {
	docs := []entity.Document{}
	r.Get(path).ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		state := item.Get("uploadState").String()
		if state == "" {
			state = entity.UploadStatePending
		}
		docs = append(docs, entity.Document{
			ID:          item.Get("id").String(),
			Name:        item.Get("name").String(),
			Size:        item.Get("size").Int(),
			MimeType:    item.Get("mimeType").String(),
			UploadState: state,
			Progress:    int(item.Get("progress").Int()),
		})
		return true
	})
	return docs
}

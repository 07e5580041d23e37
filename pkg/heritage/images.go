package heritage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Upload limits.
const (
	DefaultMaxImages     = 5
	DefaultMaxImageBytes = 5 << 20
)

// MediaLimits bounds image attachments on a submission.
type MediaLimits struct {
	MaxImages     int
	MaxImageBytes int64
}

// DefaultMediaLimits returns the 5 images / 5 MiB limits.
func DefaultMediaLimits() MediaLimits {
	return MediaLimits{MaxImages: DefaultMaxImages, MaxImageBytes: DefaultMaxImageBytes}
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// IsAllowedImageType reports whether mimeType is on the image allow-list.
func IsAllowedImageType(mimeType string) bool {
	base := strings.TrimSpace(strings.ToLower(strings.SplitN(mimeType, ";", 2)[0]))
	return allowedImageTypes[base]
}

// checkImage rejects an upload whose size, type or extension is not allowed.
func (l MediaLimits) checkImage(u ImageUpload) error {
	if u.Size() > l.MaxImageBytes {
		return &UnsupportedMediaError{
			Filename: u.Filename,
			Reason:   fmt.Sprintf("size %d exceeds limit of %d bytes", u.Size(), l.MaxImageBytes),
		}
	}
	if !IsAllowedImageType(u.MimeType) {
		return &UnsupportedMediaError{Filename: u.Filename, Reason: fmt.Sprintf("content type %q is not allowed", u.MimeType)}
	}
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if !allowedImageExtensions[ext] {
		return &UnsupportedMediaError{Filename: u.Filename, Reason: fmt.Sprintf("extension %q is not allowed", ext)}
	}
	return nil
}

// checkImages validates every upload; the first failure rejects the batch.
func (l MediaLimits) checkImages(uploads []ImageUpload) error {
	for _, u := range uploads {
		if err := l.checkImage(u); err != nil {
			return err
		}
	}
	return nil
}

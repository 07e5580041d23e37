// Package inline stores images as self-contained data URIs, so entries are
// portable without an external blob store.
package inline

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/swadeshi/heritage/pkg/heritage"
)

// Store encodes uploads as data:<mime>;base64,<payload>.
type Store struct{}

// New creates an inline image store
func New() heritage.ImageStore {
	return &Store{}
}

func (s *Store) Name() string { return "inline" }

// Put ignores key; the reference carries the payload.
func (s *Store) Put(ctx context.Context, key string, upload heritage.ImageUpload) (string, error) {
	if upload.MimeType == "" {
		return "", errors.New("mime type is required")
	}
	return Encode(upload.MimeType, upload.Data), nil
}

// Delete is a no-op: the payload lives in the entry record.
func (s *Store) Delete(ctx context.Context, ref string) error {
	return nil
}

// Encode builds a base64 data URI.
func Encode(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode splits a data URI built by Encode.
func Decode(ref string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return "", nil, errors.New("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("data uri has no payload")
	}
	mimeType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errors.New("data uri is not base64 encoded")
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrTooLarge is returned when an upload exceeds the per-file limit.
	ErrTooLarge = errors.New("file exceeds the upload size limit")
	// ErrUnsupportedType is returned when the sniffed content type is not allowed.
	ErrUnsupportedType = errors.New("file type is not accepted")
	// ErrInvalidKey is returned for keys that escape the storage root.
	ErrInvalidKey = errors.New("invalid storage key")
)

const sniffLen = 512

var extensions = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
}

// Object describes a stored file.
type Object struct {
	Key         string
	ContentType string
	Size        int64
}

// DocumentStore keeps the bytes of registration documents; metadata lives in the database.
type DocumentStore interface {
	Save(ctx context.Context, owner, field string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// LocalStore writes documents below a root directory on local disk.
type LocalStore struct {
	root     string
	maxBytes int64
	allowed  map[string]struct{}
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string, maxBytes int64, allowedTypes []string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	return &LocalStore{root: root, maxBytes: maxBytes, allowed: allowed}, nil
}

// Save sniffs the content type, enforces the size limit and writes the file to
// <owner>/<field>-<uuid><ext>. A partially written file is removed on failure.
func (s *LocalStore) Save(ctx context.Context, owner, field string, r io.Reader) (Object, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Object{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	contentType := DetectContentType(head)
	if _, ok := s.allowed[contentType]; !ok {
		return Object{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	key := path.Join(sanitize(owner), fmt.Sprintf("%s-%s%s", sanitize(field), uuid.NewString(), extensions[contentType]))
	full, err := s.resolve(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return Object{}, fmt.Errorf("create owner dir: %w", err)
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return Object{}, fmt.Errorf("create file: %w", err)
	}

	// one byte past the limit is enough to detect an oversized upload
	src := io.MultiReader(bytes.NewReader(head), r)
	written, copyErr := io.Copy(f, io.LimitReader(src, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(full)
		return Object{}, fmt.Errorf("write file: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(full)
		return Object{}, fmt.Errorf("close file: %w", closeErr)
	case written > s.maxBytes:
		_ = os.Remove(full)
		return Object{}, ErrTooLarge
	case ctx.Err() != nil:
		_ = os.Remove(full)
		return Object{}, ctx.Err()
	}

	return Object{Key: key, ContentType: contentType, Size: written}, nil
}

func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// DetectContentType returns the sniffed media type without parameters.
func DetectContentType(head []byte) string {
	ct := http.DetectContentType(head)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

package client

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/bid2build/bid2build/internal/domain"
)

// Base field keys in the order they are sent.
const (
	FieldEmail           = "email"
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldPhone           = "phone"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldUserRole        = "userRole"
)

// File is one attachment. Open is called each time the body is assembled so a retried
// attempt re-reads the content.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileFromPath attaches a file on disk.
func FileFromPath(path string) File {
	return File{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FileFromBytes attaches in-memory content.
func FileFromBytes(name string, data []byte) File {
	return File{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Field is one scalar entry. A nil Value is absent and never sent; an empty string is sent.
type Field struct {
	Key   string
	Value *string
}

// Payload is the merged registration object: base fields followed by the role's scalars, plus files.
type Payload struct {
	Fields []Field
	Files  map[string]File
}

// Set appends or replaces a scalar, keeping first-insertion order.
func (p *Payload) Set(key, value string) {
	p.SetValue(key, &value)
}

// SetValue is Set for an optional value.
func (p *Payload) SetValue(key string, value *string) {
	for i := range p.Fields {
		if p.Fields[i].Key == key {
			p.Fields[i].Value = value
			return
		}
	}
	p.Fields = append(p.Fields, Field{Key: key, Value: value})
}

// Attach adds a file under key.
func (p *Payload) Attach(key string, f File) {
	if p.Files == nil {
		p.Files = make(map[string]File)
	}
	p.Files[key] = f
}

// Body is an assembled multipart/form-data request body.
type Body struct {
	ContentType string
	// Keys lists the form keys in the order they were written.
	Keys []string
	data []byte
}

// Reader returns a fresh reader over the body.
func (b *Body) Reader() io.Reader {
	return bytes.NewReader(b.data)
}

// Len is the body size in bytes.
func (b *Body) Len() int {
	return len(b.data)
}

// Assemble writes every present scalar in order, then each file key of domain.FileKeys that
// the payload carries. File keys outside that set are ignored.
func Assemble(p *Payload) (*Body, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	body := &Body{}

	for _, f := range p.Fields {
		if f.Value == nil {
			continue
		}
		if err := w.WriteField(f.Key, *f.Value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f.Key, err)
		}
		body.Keys = append(body.Keys, f.Key)
	}

	for _, key := range domain.FileKeys {
		file, ok := p.Files[key]
		if !ok {
			continue
		}
		if err := writeFile(w, key, file); err != nil {
			return nil, err
		}
		body.Keys = append(body.Keys, key)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}
	body.ContentType = w.FormDataContentType()
	body.data = buf.Bytes()
	return body, nil
}

func writeFile(w *multipart.Writer, key string, file File) error {
	name := file.Name
	if name == "" {
		name = key
	}
	part, err := w.CreateFormFile(key, name)
	if err != nil {
		return fmt.Errorf("create file part %s: %w", key, err)
	}
	if file.Open == nil {
		return nil
	}
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	defer rc.Close()
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("copy %s: %w", key, err)
	}
	return nil
}

package model

import (
	"fmt"
	"net/http"
	"os"
)

// FetchResult describes an original fetched into a scratch file.
// It is owned by a single request; callers must call Remove when done.
type FetchResult struct {
	Path     string
	Header   http.Header
	MimeType string
	Size     int64
}

// Bytes reads the scratch file contents.
func (f *FetchResult) Bytes() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read scratch file: %w", err)
	}
	return data, nil
}

// Remove deletes the scratch file. It is safe to call more than once.
func (f *FetchResult) Remove() {
	if f == nil || f.Path == "" {
		return
	}
	_ = os.Remove(f.Path)
}

// TransformResult is an encoded variant ready to be returned and stored.
type TransformResult struct {
	Body     []byte
	MimeType string
}

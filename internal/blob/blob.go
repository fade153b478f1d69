// Package blob stores uploaded team logos and returns their public URLs.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Uploader stores a file and returns the URL clients should load it from.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// ObjectName returns a collision-free object name for an uploaded file, keeping
// a sanitized form of its base name.
func ObjectName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	clean := strings.TrimLeft(b.String(), ".")
	if clean == "" {
		clean = "logo"
	}
	return "logos/" + uuid.NewString() + "-" + clean
}

// GCSUploader writes objects to a Google Cloud Storage bucket.
type GCSUploader struct {
	client *storage.Client
	bucket string
}

// NewGCSUploader connects to Cloud Storage using application default credentials.
func NewGCSUploader(ctx context.Context, bucket string) (*GCSUploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSUploader{client: client, bucket: bucket}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	object := ObjectName(name)
	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	return "https://storage.googleapis.com/" + u.bucket + "/" + object, nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}

// DirUploader writes files below a local directory that the server exposes at baseURL.
type DirUploader struct {
	dir     string
	baseURL string
}

func NewDirUploader(dir, baseURL string) (*DirUploader, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DirUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (u *DirUploader) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	object := ObjectName(name)
	dst := filepath.Join(u.dir, filepath.FromSlash(object))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("write %s: %w", object, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	segments := strings.Split(object, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return u.baseURL + "/" + strings.Join(segments, "/"), nil
}

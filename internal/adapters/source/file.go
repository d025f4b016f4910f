package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
)

// FileOpener reads files from the local filesystem. Locations are
// percent-decoded first, so "('Kent'%2C).csv" opens "('Kent',).csv".
type FileOpener struct{}

// NewFileOpener creates a FileOpener.
func NewFileOpener() *FileOpener { return &FileOpener{} }

// Name returns "file".
func (o *FileOpener) Name() string { return "file" }

// Open opens location for reading.
func (o *FileOpener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := url.PathUnescape(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return f, nil
}

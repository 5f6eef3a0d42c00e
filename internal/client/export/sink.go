// Package export delivers downloaded documents to their destination: a
// local directory or an S3-compatible bucket.
package export

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/docmark/internal/filex"
)

// Sink stores one downloaded document and returns where it ended up.
type Sink interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// DirSink writes into a local directory, never overwriting existing files.
type DirSink struct {
	dir string
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string) (*DirSink, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &DirSink{dir: abs}, nil
}

func (s *DirSink) Dir() string { return s.dir }

func (s *DirSink) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	safe, err := filex.SafeName(name)
	if err != nil {
		return "", err
	}
	p := filex.UniquePath(s.dir, safe)

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", p, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", p, err)
	}
	return p, nil
}

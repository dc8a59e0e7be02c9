// Package script opens SQL script files and splits them into batches.
package script

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/seatown/sqlbatch/pkg/batch"
	"golang.org/x/sync/errgroup"
)

// File is a split script.
type File struct {
	Path    string   `json:"path" yaml:"path"`
	Batches []string `json:"batches" yaml:"batches"`

	// Checksum is the hex SHA-256 of the raw file bytes.
	Checksum string `json:"checksum" yaml:"checksum"`
}

// Open opens path and decodes it from enc.
func Open(path string, enc Encoding) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // path is a user-selected script
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	r, err := NewReader(f, enc)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return readCloser{Reader: r, Closer: f}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Split decodes r and splits it, recording name as the file path.
func Split(s *batch.Splitter, name string, r io.Reader, enc Encoding) (*File, error) {
	h := sha256.New()
	dr, err := NewReader(io.TeeReader(r, h), enc)
	if err != nil {
		return nil, err
	}

	batches, err := s.Parse(dr)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return &File{
		Path:     name,
		Batches:  batches,
		Checksum: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// SplitFile reads and splits the script at path.
func SplitFile(s *batch.Splitter, path string, enc Encoding) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // path is a user-selected script
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Split(s, path, f, enc)
}

// SplitFiles splits paths concurrently, at most limit at a time (no limit when
// limit <= 0). Results keep the order of paths. The first failure cancels the
// files not yet started and is returned.
func SplitFiles(ctx context.Context, s *batch.Splitter, paths []string, enc Encoding, limit int) ([]*File, error) {
	out := make([]*File, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := SplitFile(s, path, enc)
			if err != nil {
				return err
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

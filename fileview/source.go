// SPDX-License-Identifier: EPL-2.0

package fileview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source is a random-access track source with a known final size.
type Source interface {
	io.ReaderAt
	Size() int64
	Name() string
}

// ContextReaderAt is implemented by sources whose reads may wait for data.
type ContextReaderAt interface {
	ReadAtContext(ctx context.Context, p []byte, off int64) (int, error)
}

// ReadAt reads from src honouring ctx when the source supports it.
func ReadAt(ctx context.Context, src Source, p []byte, off int64) (int, error) {
	if cr, ok := src.(ContextReaderAt); ok {
		return cr.ReadAtContext(ctx, p, off)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return src.ReadAt(p, off)
}

// File is a Source backed by a local file.
type File struct {
	f    *os.File
	size int64
	name string
}

// Open opens path as a Source.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w", err)
	}

	return &File{f: f, size: st.Size(), name: filepath.Base(path)}, nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) { return f.f.ReadAt(p, off) }
func (f *File) Size() int64                              { return f.size }
func (f *File) Name() string                             { return f.name }

func (f *File) Close() error {
	if err := f.f.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// Bytes is an in-memory Source.
type Bytes struct {
	r    *bytes.Reader
	name string
}

// FromBytes wraps b as a Source. b must not be modified afterwards.
func FromBytes(name string, b []byte) *Bytes {
	return &Bytes{r: bytes.NewReader(b), name: name}
}

func (b *Bytes) ReadAt(p []byte, off int64) (int, error) { return b.r.ReadAt(p, off) }
func (b *Bytes) Size() int64                              { return b.r.Size() }
func (b *Bytes) Name() string                             { return b.name }

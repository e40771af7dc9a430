package storage

import (
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// compressionHandler wraps readers and writers according to a compression type
type compressionHandler struct {
	compressionType CompressionType
}

func newCompressionHandler(c CompressionType) compressionHandler {
	return compressionHandler{compressionType: c}
}

// reader wraps r with a decompressing reader
func (h compressionHandler) reader(r io.Reader) (io.Reader, func() error, error) {
	switch h.compressionType {
	case CompressionNone:
		return r, func() error { return nil }, nil

	case CompressionGZ:
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzReader, gzReader.Close, nil

	case CompressionBZ2:
		return bzip2.NewReader(r), func() error { return nil }, nil

	case CompressionXZ:
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzReader, func() error { return nil }, nil

	case CompressionZSTD:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, func() error {
			decoder.Close()
			return nil
		}, nil
	}
	return nil, nil, fmt.Errorf("unsupported compression type for reading: %v", h.compressionType)
}

// writer wraps w with a compressing writer
func (h compressionHandler) writer(w io.Writer) (io.Writer, func() error, error) {
	switch h.compressionType {
	case CompressionNone:
		return w, func() error { return nil }, nil

	case CompressionGZ:
		gzWriter := gzip.NewWriter(w)
		return gzWriter, gzWriter.Close, nil

	case CompressionBZ2:
		return nil, nil, errors.New("bzip2 compression is not supported for writing")

	case CompressionXZ:
		xzWriter, err := xz.NewWriter(w)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return xzWriter, xzWriter.Close, nil

	case CompressionZSTD:
		zstdWriter, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zstdWriter, zstdWriter.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported compression type for writing: %v", h.compressionType)
}

// openCompressed opens path and returns a reader that decompresses it
func openCompressed(path string, c CompressionType) (io.Reader, func() error, error) {
	file, err := os.Open(path) //nolint:gosec // paths come from the configured base directory
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	reader, cleanup, err := newCompressionHandler(c).reader(file)
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	return reader, func() error {
		cleanupErr := cleanup()
		if closeErr := file.Close(); closeErr != nil && cleanupErr == nil {
			cleanupErr = closeErr
		}
		return cleanupErr
	}, nil
}

// writeAtomically writes path through fn into a temporary file in the same
// directory and renames it into place, so a failed write leaves the previous
// file untouched.
func writeAtomically(path string, c CompressionType, fn func(io.Writer) error) (err error) {
	if c == CompressionBZ2 {
		return errors.New("bzip2 compression is not supported for writing")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sheetsql-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w, cleanup, err := newCompressionHandler(c).writer(tmp)
	if err != nil {
		return err
	}
	if err = fn(w); err != nil {
		return err
	}
	if err = cleanup(); err != nil {
		return fmt.Errorf("failed to finish compressed stream: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression selects how durable payloads are compressed
type Compression string

const (
	// CompressionNone stores the encoded result as is
	CompressionNone Compression = "none"
	// CompressionZstd uses zstd, the default
	CompressionZstd Compression = "zstd"
	// CompressionXZ uses xz
	CompressionXZ Compression = "xz"
)

// ErrUnknownCompression is returned for an unsupported compression name or tag
var ErrUnknownCompression = errors.New("unknown compression")

// ParseCompression maps a configuration value to a Compression. The empty
// string selects zstd.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zstd", "zst":
		return CompressionZstd, nil
	case "xz":
		return CompressionXZ, nil
	case "none":
		return CompressionNone, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCompression, s)
}

// payload tags; the first byte of every stored payload names its compression
// so that entries stay readable after the configuration changes
const (
	tagNone byte = 'n'
	tagZstd byte = 'z'
	tagXZ   byte = 'x'
)

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return append([]byte{tagNone}, data...), nil
	case CompressionZstd, "":
		enc, _, err := zstdCodec()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(data, []byte{tagZstd}), nil
	case CompressionXZ:
		var buf bytes.Buffer
		buf.WriteByte(tagXZ)
		w, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to compress payload: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to compress payload: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
}

func decompress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnknownCompression)
	}
	body := payload[1:]
	switch payload[0] {
	case tagNone:
		return body, nil
	case tagZstd:
		_, dec, err := zstdCodec()
		if err != nil {
			return nil, err
		}
		out, err := dec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress payload: %w", err)
		}
		return out, nil
	case tagXZ:
		r, err := xz.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress payload: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: tag %q", ErrUnknownCompression, payload[0])
}

package storage

import (
	"path/filepath"
	"strings"
)

// Format is the file format of a sheet or workbook
type Format int

const (
	// FormatUnsupported marks files the directory ignores
	FormatUnsupported Format = iota
	// FormatXLSX is an Excel workbook; one file holds every sheet
	FormatXLSX
	// FormatCSV is comma-separated values, one file per sheet
	FormatCSV
	// FormatTSV is tab-separated values, one file per sheet
	FormatTSV
	// FormatParquet is Apache Parquet, one file per sheet
	FormatParquet
)

// File extensions
const (
	extXLSX    = ".xlsx"
	extCSV     = ".csv"
	extTSV     = ".tsv"
	extParquet = ".parquet"
	extGZ      = ".gz"
	extBZ2     = ".bz2"
	extXZ      = ".xz"
	extZSTD    = ".zst"
)

// String returns the format name
func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatCSV:
		return "csv"
	case FormatTSV:
		return "tsv"
	case FormatParquet:
		return "parquet"
	default:
		return "unsupported"
	}
}

// Extension returns the file extension of the format
func (f Format) Extension() string {
	switch f {
	case FormatXLSX:
		return extXLSX
	case FormatCSV:
		return extCSV
	case FormatTSV:
		return extTSV
	case FormatParquet:
		return extParquet
	default:
		return ""
	}
}

// ParseFormat maps a configuration value to a Format
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "xlsx":
		return FormatXLSX
	case "csv":
		return FormatCSV
	case "tsv":
		return FormatTSV
	case "parquet":
		return FormatParquet
	default:
		return FormatUnsupported
	}
}

// CompressionType is the compression wrapped around a sheet file
type CompressionType int

const (
	// CompressionNone represents no compression
	CompressionNone CompressionType = iota
	// CompressionGZ represents gzip compression
	CompressionGZ
	// CompressionBZ2 represents bzip2 compression (read only)
	CompressionBZ2
	// CompressionXZ represents xz compression
	CompressionXZ
	// CompressionZSTD represents zstd compression
	CompressionZSTD
)

// String returns the compression name
func (c CompressionType) String() string {
	switch c {
	case CompressionGZ:
		return "gz"
	case CompressionBZ2:
		return "bz2"
	case CompressionXZ:
		return "xz"
	case CompressionZSTD:
		return "zstd"
	default:
		return "none"
	}
}

// Extension returns the file extension for the compression type
func (c CompressionType) Extension() string {
	switch c {
	case CompressionGZ:
		return extGZ
	case CompressionBZ2:
		return extBZ2
	case CompressionXZ:
		return extXZ
	case CompressionZSTD:
		return extZSTD
	default:
		return ""
	}
}

// ParseCompressionType maps a configuration value to a CompressionType
func ParseCompressionType(s string) CompressionType {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "gz", "gzip":
		return CompressionGZ
	case "bz2", "bzip2":
		return CompressionBZ2
	case "xz":
		return CompressionXZ
	case "zst", "zstd":
		return CompressionZSTD
	default:
		return CompressionNone
	}
}

// Options selects the file layout of workbooks the directory creates.
type Options struct {
	// Format of new workbooks. FormatXLSX writes one .xlsx file per
	// workbook; the per-sheet formats write a directory per workbook.
	Format Format
	// Compression of new per-sheet files. Ignored for XLSX.
	Compression CompressionType
}

// DefaultOptions creates XLSX workbooks
func DefaultOptions() Options {
	return Options{Format: FormatXLSX, Compression: CompressionNone}
}

// WithFormat sets the format of new workbooks
func (o Options) WithFormat(format Format) Options {
	o.Format = format
	return o
}

// WithCompression sets the compression of new sheet files
func (o Options) WithCompression(compression CompressionType) Options {
	o.Compression = compression
	return o
}

// SheetExtension returns the extension of new sheet files in a directory
// workbook, including compression. XLSX falls back to CSV since an XLSX file
// cannot hold a single sheet of a directory workbook.
func (o Options) SheetExtension() string {
	format := o.Format
	if format == FormatXLSX || format == FormatUnsupported {
		format = FormatCSV
	}
	return format.Extension() + o.Compression.Extension()
}

// detectFile splits a file name into its base name, format and compression
func detectFile(name string) (base string, format Format, compression CompressionType) {
	lower := strings.ToLower(name)
	for _, c := range []CompressionType{CompressionGZ, CompressionBZ2, CompressionXZ, CompressionZSTD} {
		if strings.HasSuffix(lower, c.Extension()) {
			compression = c
			name = name[:len(name)-len(c.Extension())]
			lower = lower[:len(lower)-len(c.Extension())]
			break
		}
	}
	ext := filepath.Ext(lower)
	format = ParseFormat(ext)
	if format == FormatXLSX && compression != CompressionNone {
		format = FormatUnsupported
	}
	return name[:len(name)-len(ext)], format, compression
}

package driver

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/sheetsql"
)

// MemoryDSN opens an engine without a storage directory
const MemoryDSN = ":memory:"

// ErrInvalidPath is returned when a base directory is invalid or potentially dangerous
var ErrInvalidPath = errors.New("invalid or dangerous path")

// DSN is a parsed data source name of the form
//
//	[baseDir][?workbook=name&config=file.yaml&cache=true&maxRows=100&timeout=5s&format=csv&compression=gz]
//
// An empty base directory or ":memory:" keeps every workbook in memory.
type DSN struct {
	BaseDir string
	// Workbook is selected with USE on every new connection
	Workbook string
	// ConfigFile is read with sheetsql.LoadConfig before the other parameters apply
	ConfigFile string
	// UseCache routes SELECT statements through the result cache
	UseCache bool

	params url.Values
}

// ParseDSN parses a data source name
func ParseDSN(dsn string) (DSN, error) {
	base, query, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(query)
	if err != nil {
		return DSN{}, fmt.Errorf("%w: %w", ErrInvalidDSN, err)
	}

	d := DSN{params: params}
	if base != "" && base != MemoryDSN {
		if err := ValidatePath(base); err != nil {
			return DSN{}, fmt.Errorf("%w: %s: %w", ErrInvalidDSN, base, err)
		}
		d.BaseDir = base
	}
	d.Workbook = params.Get("workbook")
	d.ConfigFile = params.Get("config")
	if v := params.Get("cache"); v != "" {
		if d.UseCache, err = strconv.ParseBool(v); err != nil {
			return DSN{}, fmt.Errorf("%w: cache=%s", ErrInvalidDSN, v)
		}
	}
	if _, err := d.Config(); err != nil {
		return DSN{}, err
	}
	return d, nil
}

// Config builds the engine configuration of the DSN
func (d DSN) Config() (sheetsql.Config, error) {
	cfg := sheetsql.DefaultConfig()
	if d.ConfigFile != "" {
		var err error
		if cfg, err = sheetsql.LoadConfig(d.ConfigFile); err != nil {
			return sheetsql.Config{}, fmt.Errorf("%w: %w", ErrInvalidDSN, err)
		}
	}
	if d.BaseDir != "" {
		cfg.Storage.BaseDir = d.BaseDir
	}
	if v := d.params.Get("format"); v != "" {
		cfg.Storage.Format = v
	}
	if v := d.params.Get("compression"); v != "" {
		cfg.Storage.Compression = v
	}
	if v := d.params.Get("maxRows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return sheetsql.Config{}, fmt.Errorf("%w: maxRows=%s", ErrInvalidDSN, v)
		}
		cfg.Query.MaxRows = n
	}
	if v := d.params.Get("timeout"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return sheetsql.Config{}, fmt.Errorf("%w: timeout=%s", ErrInvalidDSN, v)
		}
		cfg.Query.Timeout = timeout
	}
	return cfg, nil
}

// ValidatePath rejects base directories that are empty, contain null bytes,
// climb more than three levels or point into system directories.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrInvalidPath
	}
	if strings.Contains(path, "\x00") {
		return ErrInvalidPath
	}
	if !isLegitimateRelativePath(path) {
		return ErrInvalidPath
	}

	lowerPath := strings.ToLower(filepath.ToSlash(path))
	for _, sysDir := range []string{"/etc/", "/proc/", "/sys/", "/dev/", "/boot/"} {
		if strings.HasPrefix(lowerPath+"/", sysDir) {
			return ErrInvalidPath
		}
	}
	for _, winDir := range []string{"c:/windows/", "c:/program files", "//"} {
		if strings.HasPrefix(lowerPath, winDir) {
			return ErrInvalidPath
		}
	}
	return nil
}

// isLegitimateRelativePath reports whether a relative path climbs at most
// three directories.
func isLegitimateRelativePath(path string) bool {
	cleanPath := filepath.ToSlash(filepath.Clean(path))
	if !strings.HasPrefix(cleanPath, "../") && cleanPath != ".." {
		return true
	}
	upLevels := 0
	for _, part := range strings.Split(cleanPath, "/") {
		if part != ".." {
			break
		}
		upLevels++
	}
	return upLevels <= 3
}

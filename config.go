package sheetsql

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SHEETSQL_CACHE_REDISADDR
const EnvPrefix = "SHEETSQL"

// Config holds the engine settings. Zero durations and sizes fall back to
// the defaults.
type Config struct {
	Pool    PoolConfig    `mapstructure:"pool"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Index   IndexConfig   `mapstructure:"index"`
	Storage StorageConfig `mapstructure:"storage"`
	Query   QueryConfig   `mapstructure:"query"`
}

// PoolConfig sizes the statement worker pool
type PoolConfig struct {
	MinWorkers    int           `mapstructure:"minWorkers"`
	MaxWorkers    int           `mapstructure:"maxWorkers"`
	KeepAlive     time.Duration `mapstructure:"keepAlive"`
	QueueCapacity int           `mapstructure:"queueCapacity"`
}

// CacheConfig configures the three result cache tiers
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	L1Size  int           `mapstructure:"l1Size"`
	L1TTL   time.Duration `mapstructure:"l1TTL"`
	// L2TTL is the shared tier TTL; the durable tier keeps entries twice as long.
	L2TTL time.Duration `mapstructure:"l2TTL"`
	// RedisAddr selects a redis shared tier; empty keeps it in process.
	RedisAddr string `mapstructure:"redisAddr"`
	// DurablePath selects a sqlite durable tier; empty keeps it in process.
	DurablePath string `mapstructure:"durablePath"`
	// Compression of durable payloads: none, zstd or xz.
	Compression string `mapstructure:"compression"`
}

// IndexConfig tunes index maintenance
type IndexConfig struct {
	// RebuildFraction is the share of dirty rows above which an index is
	// rebuilt instead of patched.
	RebuildFraction float64 `mapstructure:"rebuildFraction"`
}

// StorageConfig selects the directory of workbook files
type StorageConfig struct {
	// BaseDir holds the workbooks; empty runs the engine in memory only.
	BaseDir string `mapstructure:"baseDir"`
	// Format of new workbooks: xlsx, csv, tsv or parquet.
	Format string `mapstructure:"format"`
	// Compression of new sheet files: none, gz, xz or zstd.
	Compression string `mapstructure:"compression"`
}

// QueryConfig bounds statement execution
type QueryConfig struct {
	// MaxRows caps SELECT results when a call does not set its own; 0 is unlimited.
	MaxRows            int           `mapstructure:"maxRows"`
	Timeout            time.Duration `mapstructure:"timeout"`
	SlowQueryThreshold time.Duration `mapstructure:"slowQueryThreshold"`
}

// DefaultConfig returns the default settings
func DefaultConfig() Config {
	return Config{
		Pool: PoolConfig{
			MinWorkers:    4,
			MaxWorkers:    8,
			KeepAlive:     60 * time.Second,
			QueueCapacity: 100,
		},
		Cache: CacheConfig{
			Enabled:     true,
			L1Size:      200,
			L1TTL:       10 * time.Minute,
			L2TTL:       time.Hour,
			Compression: "zstd",
		},
		Index: IndexConfig{
			RebuildFraction: 0.25,
		},
		Storage: StorageConfig{
			Format:      "xlsx",
			Compression: "none",
		},
		Query: QueryConfig{
			MaxRows:            10000,
			Timeout:            30 * time.Second,
			SlowQueryThreshold: time.Second,
		},
	}
}

// setDefaults registers every default with viper so that environment
// variables can override keys absent from the file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("pool.minWorkers", cfg.Pool.MinWorkers)
	v.SetDefault("pool.maxWorkers", cfg.Pool.MaxWorkers)
	v.SetDefault("pool.keepAlive", cfg.Pool.KeepAlive)
	v.SetDefault("pool.queueCapacity", cfg.Pool.QueueCapacity)
	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.l1Size", cfg.Cache.L1Size)
	v.SetDefault("cache.l1TTL", cfg.Cache.L1TTL)
	v.SetDefault("cache.l2TTL", cfg.Cache.L2TTL)
	v.SetDefault("cache.redisAddr", cfg.Cache.RedisAddr)
	v.SetDefault("cache.durablePath", cfg.Cache.DurablePath)
	v.SetDefault("cache.compression", cfg.Cache.Compression)
	v.SetDefault("index.rebuildFraction", cfg.Index.RebuildFraction)
	v.SetDefault("storage.baseDir", cfg.Storage.BaseDir)
	v.SetDefault("storage.format", cfg.Storage.Format)
	v.SetDefault("storage.compression", cfg.Storage.Compression)
	v.SetDefault("query.maxRows", cfg.Query.MaxRows)
	v.SetDefault("query.timeout", cfg.Query.Timeout)
	v.SetDefault("query.slowQueryThreshold", cfg.Query.SlowQueryThreshold)
}

// LoadConfig reads a YAML config file over the defaults. Environment
// variables prefixed with SHEETSQL_ override both, e.g.
// SHEETSQL_QUERY_MAXROWS=50. An empty path or a missing file yields the
// defaults plus environment overrides.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.normalize(), nil
}

// normalize replaces unusable values with the defaults
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.Pool.MinWorkers <= 0 {
		c.Pool.MinWorkers = def.Pool.MinWorkers
	}
	if c.Pool.MaxWorkers < c.Pool.MinWorkers {
		c.Pool.MaxWorkers = c.Pool.MinWorkers
	}
	if c.Pool.KeepAlive <= 0 {
		c.Pool.KeepAlive = def.Pool.KeepAlive
	}
	if c.Pool.QueueCapacity < 0 {
		c.Pool.QueueCapacity = 0
	}
	if c.Cache.L1Size <= 0 {
		c.Cache.L1Size = def.Cache.L1Size
	}
	if c.Cache.L1TTL <= 0 {
		c.Cache.L1TTL = def.Cache.L1TTL
	}
	if c.Cache.L2TTL <= 0 {
		c.Cache.L2TTL = def.Cache.L2TTL
	}
	if c.Index.RebuildFraction <= 0 {
		c.Index.RebuildFraction = def.Index.RebuildFraction
	}
	if c.Query.MaxRows < 0 {
		c.Query.MaxRows = 0
	}
	return c
}

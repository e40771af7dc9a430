package sheetsql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sheetsql/cache"
	"github.com/nao1215/sheetsql/domain/model"
	"github.com/nao1215/sheetsql/function"
	"github.com/nao1215/sheetsql/index"
	"github.com/nao1215/sheetsql/parser"
	"github.com/nao1215/sheetsql/storage"
)

// ExecOptions are the per-call execution settings.
type ExecOptions struct {
	// Workbook overrides the session's current workbook.
	Workbook string
	// UseCache serves and stores SELECT results through the result cache.
	UseCache bool
	// MaxRows caps SELECT results. 0 selects the configured default and a
	// negative value removes the cap.
	MaxRows int
	// Timeout bounds the statement. 0 selects the configured default.
	Timeout time.Duration
}

// Engine executes SQL statements against workbooks. An Engine is safe for
// concurrent use; each logical client should use its own Session.
type Engine struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	registry  *function.Registry
	parser    *parser.Parser
	cache     *cache.Manager
	indexes   *index.Manager
	workbooks *workbookManager
	locks     *lockManager
	pool      *workerPool
	provider  SheetDataProvider
	handlers  map[parser.Kind]Handler

	closers   []io.Closer
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Option configures an Engine
type Option func(*engineOptions)

type engineOptions struct {
	logger      *zap.Logger
	now         func() time.Time
	cache       *cache.Manager
	cacheSet    bool
	provider    SheetDataProvider
	providerSet bool
	catalog     WorkbookCatalog
	catalogSet  bool
	handlers    map[parser.Kind]Handler
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithClock replaces the time source of the engine and its date functions
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		o.now = now
	}
}

// WithCache replaces the cache built from the configuration. A nil manager
// disables caching.
func WithCache(m *cache.Manager) Option {
	return func(o *engineOptions) {
		o.cache = m
		o.cacheSet = true
	}
}

// WithProvider replaces the sheet data provider built from the
// configuration. A nil provider keeps sheets in memory only.
func WithProvider(p SheetDataProvider) Option {
	return func(o *engineOptions) {
		o.provider = p
		o.providerSet = true
	}
}

// WithCatalog replaces the workbook catalog built from the configuration
func WithCatalog(c WorkbookCatalog) Option {
	return func(o *engineOptions) {
		o.catalog = c
		o.catalogSet = true
	}
}

// WithHandler replaces the handler of one statement kind. The handler is
// still wrapped with logging, locking and caching.
func WithHandler(kind parser.Kind, h Handler) Option {
	return func(o *engineOptions) {
		if o.handlers == nil {
			o.handlers = make(map[parser.Kind]Handler)
		}
		o.handlers[kind] = h
	}
}

// New creates an engine. Unless replaced by options, the cache tiers and
// the storage directory are built from cfg: a redis shared tier when
// Cache.RedisAddr is set, a sqlite durable tier when Cache.DurablePath is
// set, and a workbook directory when Storage.BaseDir is set.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.normalize()
	o := engineOptions{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	e := &Engine{
		cfg:      cfg,
		logger:   o.logger,
		now:      o.now,
		registry: function.NewRegistry(function.WithClock(o.now)),
		indexes:  index.NewManager(cfg.Index.RebuildFraction),
		locks:    newLockManager(),
	}
	e.parser = parser.New(e.registry)

	if o.cacheSet {
		e.cache = o.cache
	} else if cfg.Cache.Enabled {
		m, err := e.buildCache(cfg.Cache)
		if err != nil {
			e.closeResources()
			return nil, err
		}
		e.cache = m
	}
	if e.cache != nil {
		e.closers = append(e.closers, e.cache)
	}

	var dir *storage.Directory
	if cfg.Storage.BaseDir != "" && (!o.providerSet || !o.catalogSet) {
		var err error
		if dir, err = newDirectory(cfg.Storage); err != nil {
			e.closeResources()
			return nil, err
		}
	}
	catalog, provider := o.catalog, o.provider
	if !o.catalogSet && dir != nil {
		catalog = dir
	}
	if !o.providerSet && dir != nil {
		provider = dir
	}
	e.provider = provider
	e.workbooks = newWorkbookManager(catalog, provider, e.now, e.logger)

	e.handlers = e.defaultHandlers()
	for kind, h := range o.handlers {
		e.handlers[kind] = h
	}
	e.pool = newWorkerPool(cfg.Pool)

	e.logger.Info("engine started",
		zap.Int("minWorkers", cfg.Pool.MinWorkers),
		zap.Int("maxWorkers", cfg.Pool.MaxWorkers),
		zap.Bool("cache", e.cache != nil),
		zap.String("baseDir", cfg.Storage.BaseDir))
	return e, nil
}

func newDirectory(cfg StorageConfig) (*storage.Directory, error) {
	format := storage.ParseFormat(cfg.Format)
	if format == storage.FormatUnsupported {
		return nil, fmt.Errorf("%w: storage format %q is not supported", ErrValidation, cfg.Format)
	}
	opts := storage.DefaultOptions().
		WithFormat(format).
		WithCompression(storage.ParseCompressionType(cfg.Compression))
	return storage.NewDirectory(cfg.BaseDir, opts), nil
}

// buildCache assembles the three tiers: an in-process LRU, redis or an
// in-process shared tier, and a sqlite or in-memory durable store.
func (e *Engine) buildCache(cfg CacheConfig) (*cache.Manager, error) {
	compression, err := cache.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()

	var shared cache.Tier
	if cfg.RedisAddr != "" {
		client, err := cache.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("cache redis tier: %w", err)
		}
		shared = cache.NewRedisTier(client, cfg.L2TTL)
	} else {
		shared = cache.NewMemoryTier("shared-memory", cfg.L1Size*10, cfg.L2TTL)
	}

	var store cache.DurableStore = cache.NewMemoryStore()
	if cfg.DurablePath != "" {
		s, err := cache.OpenSQLiteStore(ctx, cfg.DurablePath)
		if err != nil {
			if c, ok := shared.(io.Closer); ok {
				_ = c.Close()
			}
			return nil, fmt.Errorf("cache durable tier: %w", err)
		}
		if n, err := s.PurgeExpired(ctx, e.now()); err != nil {
			e.logger.Warn("failed to purge expired cache entries", zap.Error(err))
		} else if n > 0 {
			e.logger.Debug("purged expired cache entries", zap.Int64("count", n))
		}
		store = s
	}

	return cache.NewManager(e.logger,
		cache.NewMemoryTier("memory", cfg.L1Size, cfg.L1TTL),
		shared,
		cache.NewDurableTier(store, cache.DurableTTL(cfg.L2TTL), compression),
	), nil
}

// NewSession creates a session without a current workbook
func (e *Engine) NewSession() *Session {
	return newSession()
}

// Parse parses one statement. The result is never nil; check Success.
func (e *Engine) Parse(sql string) *parser.Statement {
	return e.parser.Parse(sql)
}

// Validate reports the first syntax error of sql, or nil
func (e *Engine) Validate(sql string) error {
	if err := e.parser.Validate(sql); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	return nil
}

// Query parses and executes sql
func (e *Engine) Query(ctx context.Context, sess *Session, sql string, opts ExecOptions) *model.QueryResult {
	return e.Execute(ctx, sess, e.Parse(sql), opts)
}

// outcome is what a worker hands back to the waiting caller
type outcome struct {
	res *model.QueryResult
	err error
}

// Execute runs a parsed statement and always returns a result; failures
// are reported through Success, ErrorKind and Error. The statement runs on
// the engine's worker pool. When the timeout expires first the caller gets
// a timeout failure and the statement leaves no visible change.
//
// Execute panics when given a successfully parsed statement without a
// kind, which only a hand-built statement can have.
func (e *Engine) Execute(ctx context.Context, sess *Session, stmt *parser.Statement, opts ExecOptions) *model.QueryResult {
	start := e.now()
	if stmt == nil {
		stmt = e.Parse("")
	}
	if !stmt.Success {
		return e.failure(stmt, fmt.Errorf("%w: %w", ErrParse, stmt.Err()), start)
	}
	if e.closed.Load() {
		return e.failure(stmt, ErrClosed, start)
	}
	if sess == nil {
		sess = newSession()
	}

	req, h, err := e.dispatch(sess, stmt, opts)
	if err != nil {
		return e.failure(stmt, err, start)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Query.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("statement panicked",
					zap.Stringer("kind", stmt.Kind), zap.Any("panic", r), zap.Stack("stack"))
				done <- outcome{err: fmt.Errorf("%w: internal error: %v", ErrExecution, r)}
			}
		}()
		res, err := h.Handle(ctx, req)
		done <- outcome{res: res, err: err}
	}
	if !e.pool.submit(task) {
		return e.failure(stmt, ErrClosed, start)
	}

	select {
	case o := <-done:
		return e.finish(stmt, o, start)
	case <-ctx.Done():
		if !req.abandon() {
			// the statement is committing; its result is the truth
			return e.finish(stmt, <-done, start)
		}
		select {
		case o := <-done:
			return e.finish(stmt, o, start)
		default:
		}
		err := ErrTimeout
		if errors.Is(ctx.Err(), context.Canceled) {
			err = fmt.Errorf("%w: %w", ErrExecution, ctx.Err())
		}
		return e.failure(stmt, err, start)
	}
}

// finish turns a handler outcome into the caller's result. Results coming
// out of the handler chain may be shared with the cache and are copied
// before the duration is set.
func (e *Engine) finish(stmt *parser.Statement, o outcome, start time.Time) *model.QueryResult {
	if o.err != nil {
		return e.failure(stmt, o.err, start)
	}
	if o.res == nil {
		return &model.QueryResult{StatementType: stmt.Kind.String(), Success: true, Duration: e.now().Sub(start)}
	}
	res := *o.res
	if res.StatementType == "" {
		res.StatementType = stmt.Kind.String()
	}
	if !res.FromCache {
		res.Duration = e.now().Sub(start)
	}
	return &res
}

func (e *Engine) failure(stmt *parser.Statement, err error, start time.Time) *model.QueryResult {
	kind := "UNKNOWN"
	if stmt.Success {
		kind = stmt.Kind.String()
	}
	return &model.QueryResult{
		StatementType: kind,
		Success:       false,
		ErrorKind:     errorKind(err),
		Error:         err.Error(),
		Duration:      e.now().Sub(start),
	}
}

// liveWorkbook returns a workbook that has not been dropped
func (e *Engine) liveWorkbook(ctx context.Context, name string) (*model.Workbook, error) {
	wb, ok, err := e.workbooks.get(ctx, name)
	if err != nil {
		return nil, classify(newErrorContext("load workbook", name), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: workbook %s does not exist", ErrValidation, name)
	}
	return wb, nil
}

// liveSheet returns a sheet of wb that has not been dropped
func liveSheet(wb *model.Workbook, name string) (*model.Sheet, error) {
	sheet, ok := wb.Sheet(name)
	if !ok {
		return nil, fmt.Errorf("%w: sheet %s does not exist in workbook %s", ErrValidation, name, wb.Name)
	}
	return sheet, nil
}

// invalidate purges a cache scope; it is a no-op without a cache
func (e *Engine) invalidate(ctx context.Context, scope cache.Scope) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Invalidate(ctx, scope)
}

// ClearAll empties every cache tier. Repeated calls are harmless.
func (e *Engine) ClearAll(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.InvalidateAll(ctx)
}

// ClearWorkbook purges the cached results of one workbook
func (e *Engine) ClearWorkbook(ctx context.Context, workbook string) error {
	return e.invalidate(ctx, cache.WorkbookScope(workbook))
}

// ClearSheet purges the cached results that read one sheet
func (e *Engine) ClearSheet(ctx context.Context, workbook, sheet string) error {
	return e.invalidate(ctx, cache.SheetScope(workbook, sheet))
}

// CacheStats returns per-tier counters, or nil when caching is disabled
func (e *Engine) CacheStats() []cache.TierStats {
	if e.cache == nil {
		return nil
	}
	return e.cache.Stats()
}

// PoolStats returns a snapshot of the worker pool
func (e *Engine) PoolStats() PoolStats {
	return e.pool.stats()
}

// IndexRebuilds returns how many full index rebuilds maintenance performed
func (e *Engine) IndexRebuilds() int64 {
	return e.indexes.Rebuilds()
}

// Workbooks lists the live workbooks known to the engine and its catalog
func (e *Engine) Workbooks(ctx context.Context) ([]model.WorkbookInfo, error) {
	return e.workbooks.list(ctx)
}

// Preload loads the named workbooks from the catalog concurrently, so that
// first statements do not pay the load.
func (e *Engine) Preload(ctx context.Context, names ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sheetLoadConcurrency)
	for _, name := range names {
		g.Go(func() error {
			_, ok, err := e.workbooks.get(gctx, name)
			if err != nil {
				return fmt.Errorf("preload %s: %w", name, err)
			}
			if !ok {
				return fmt.Errorf("%w: preload %s: workbook does not exist", ErrNotFound, name)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close stops the worker pool after running statements finish and
// releases the cache tiers. Statements executed afterwards fail.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.pool != nil {
			e.pool.close()
		}
		e.closeErr = e.closeResources()
		e.logger.Info("engine closed")
	})
	return e.closeErr
}

func (e *Engine) closeResources() error {
	var errs []error
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

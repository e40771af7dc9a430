package sheetsql

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nao1215/sheetsql/cache"
	"github.com/nao1215/sheetsql/domain/model"
	"github.com/nao1215/sheetsql/parser"
)

// Handler executes the statements of one kind.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*model.QueryResult, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, req *Request) (*model.QueryResult, error)

// Handle calls f(ctx, req)
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*model.QueryResult, error) {
	return f(ctx, req)
}

// Request carries one statement to its handler.
type Request struct {
	Statement *parser.Statement
	// Workbook is the resolved workbook; it is empty for statements that
	// run outside a workbook.
	Workbook string
	Session  *Session
	// MaxRows caps SELECT results; 0 is unlimited.
	MaxRows  int
	UseCache bool

	state atomic.Int32
}

const (
	stateRunning int32 = iota
	stateCommitting
	stateAbandoned
)

// beginCommit marks the point after which the statement's effects become
// visible. It reports false if the caller has already given up on the
// statement, in which case nothing may be applied.
func (r *Request) beginCommit() bool {
	return r.state.CompareAndSwap(stateRunning, stateCommitting) ||
		r.state.Load() == stateCommitting
}

// abandon reports whether the caller may stop waiting; false means a commit
// is in progress and its result must be awaited.
func (r *Request) abandon() bool {
	return r.state.CompareAndSwap(stateRunning, stateAbandoned) ||
		r.state.Load() == stateAbandoned
}

// chain wraps a handler with the engine's logging, locking and caching,
// outermost first.
func (e *Engine) chain(h Handler) Handler {
	return e.logged(e.locked(e.cached(h)))
}

// logged logs every statement. Failures and statements slower than the
// configured threshold are logged at warn level.
func (e *Engine) logged(next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (*model.QueryResult, error) {
		start := e.now()
		res, err := next.Handle(ctx, req)
		elapsed := e.now().Sub(start)

		fields := []zap.Field{
			zap.String("session", req.Session.ID()),
			zap.Stringer("kind", req.Statement.Kind),
			zap.String("workbook", req.Workbook),
			zap.Duration("elapsed", elapsed),
		}
		if res != nil {
			fields = append(fields,
				zap.Int("rows", len(res.Rows)),
				zap.Int64("affected", res.AffectedRows),
				zap.Bool("cached", res.FromCache))
		}
		switch {
		case err != nil:
			e.logger.Warn("statement failed", append(fields, zap.Error(err))...)
		case e.cfg.Query.SlowQueryThreshold > 0 && elapsed > e.cfg.Query.SlowQueryThreshold:
			e.logger.Warn("slow statement", append(fields, zap.String("sql", req.Statement.String()))...)
		default:
			e.logger.Debug("statement executed", fields...)
		}
		return res, err
	})
}

// locked runs the handler under the workbook and sheet locks of the statement
func (e *Engine) locked(next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (*model.QueryResult, error) {
		release := e.locks.acquire(locksFor(req.Statement, req.Workbook))
		defer release()
		if err := ctx.Err(); err != nil {
			return nil, classify(newErrorContext("lock", req.Workbook), err)
		}
		return next.Handle(ctx, req)
	})
}

// cached serves SELECT statements from the result cache and stores
// successful results. It runs inside locked, so a lookup never races with
// the invalidation of a writer on the same sheets.
func (e *Engine) cached(next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (*model.QueryResult, error) {
		if e.cache == nil || !req.UseCache || req.Statement.Kind != parser.KindSelect {
			return next.Handle(ctx, req)
		}

		start := e.now()
		key := cacheKey(req)
		if res, tier, ok := e.cache.Get(ctx, key); ok {
			e.logger.Debug("cache hit", zap.Stringer("key", key), zap.Int("tier", tier))
			return res.WithCacheHit(e.now().Sub(start)), nil
		}

		res, err := next.Handle(ctx, req)
		if err == nil && res != nil && res.Success {
			e.cache.Put(ctx, key, res)
		}
		return res, err
	})
}

// cacheKey derives the cache key of a SELECT. The row cap is part of the
// key since it changes the result.
func cacheKey(req *Request) cache.Key {
	normalized := req.Statement.String()
	if req.MaxRows > 0 {
		normalized = fmt.Sprintf("%s /* maxRows=%d */", normalized, req.MaxRows)
	}
	return cache.NewKey(req.Workbook, req.Statement.TargetTables(), normalized)
}

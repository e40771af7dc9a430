package sheetsql

import (
	"fmt"

	"github.com/nao1215/sheetsql/parser"
)

// defaultHandlers maps every supported statement kind to its handler
func (e *Engine) defaultHandlers() map[parser.Kind]Handler {
	return map[parser.Kind]Handler{
		parser.KindSelect:         HandlerFunc(e.handleSelect),
		parser.KindInsert:         HandlerFunc(e.handleInsert),
		parser.KindUpdate:         HandlerFunc(e.handleUpdate),
		parser.KindDelete:         HandlerFunc(e.handleDelete),
		parser.KindCreateWorkbook: HandlerFunc(e.handleCreateWorkbook),
		parser.KindCreateSheet:    HandlerFunc(e.handleCreateSheet),
		parser.KindDropWorkbook:   HandlerFunc(e.handleDropWorkbook),
		parser.KindDropSheet:      HandlerFunc(e.handleDropSheet),
		parser.KindUseWorkbook:    HandlerFunc(e.handleUseWorkbook),
		parser.KindCreateIndex:    HandlerFunc(e.handleCreateIndex),
		parser.KindDropIndex:      HandlerFunc(e.handleDropIndex),
		parser.KindShowWorkbooks:  HandlerFunc(e.handleShowWorkbooks),
		parser.KindShowSheets:     HandlerFunc(e.handleShowSheets),
	}
}

// handlerFor selects the handler of a statement kind. A parsed statement
// always has a kind, so KindUnknown here is a defect of the caller.
func handlerFor(handlers map[parser.Kind]Handler, kind parser.Kind) (Handler, error) {
	if kind == parser.KindUnknown {
		panic("sheetsql: dispatch of a statement without a kind")
	}
	h, ok := handlers[kind]
	if !ok || h == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStatement, kind)
	}
	return h, nil
}

// resolveWorkbook returns the workbook a statement runs in: the one given
// by the call, else the session's current workbook. Statements that manage
// workbooks themselves run outside any workbook.
func resolveWorkbook(sess *Session, kind parser.Kind, explicit string) (string, error) {
	if !kind.NeedsWorkbook() {
		return "", nil
	}
	if explicit != "" {
		return explicit, nil
	}
	if current := sess.CurrentWorkbook(); current != "" {
		return current, nil
	}
	return "", ErrNoWorkbook
}

// dispatch builds the request of a parsed statement and the wrapped handler
// that runs it. It fails before any handler runs when the kind has no
// handler or no workbook can be resolved.
func (e *Engine) dispatch(sess *Session, stmt *parser.Statement, opts ExecOptions) (*Request, Handler, error) {
	h, err := handlerFor(e.handlers, stmt.Kind)
	if err != nil {
		return nil, nil, err
	}
	workbook, err := resolveWorkbook(sess, stmt.Kind, opts.Workbook)
	if err != nil {
		return nil, nil, err
	}

	maxRows := opts.MaxRows
	switch {
	case maxRows == 0:
		maxRows = e.cfg.Query.MaxRows
	case maxRows < 0:
		maxRows = 0
	}
	req := &Request{
		Statement: stmt,
		Workbook:  workbook,
		Session:   sess,
		MaxRows:   maxRows,
		UseCache:  opts.UseCache,
	}
	return req, e.chain(h), nil
}

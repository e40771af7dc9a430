package sheetsql

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession(t *testing.T) {
	t.Parallel()

	s := newSession()
	id, err := uuid.Parse(s.ID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, s.ID(), newSession().ID())

	assert.Empty(t, s.CurrentWorkbook())
	s.use("a")
	assert.Equal(t, "a", s.CurrentWorkbook())
	s.forget("b")
	assert.Equal(t, "a", s.CurrentWorkbook())
	s.forget("a")
	assert.Empty(t, s.CurrentWorkbook())
}

func TestSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	setup := e.NewSession()
	for _, wb := range []string{"north", "south"} {
		mustRun(t, e, setup, `CREATE WORKBOOK `+wb)
		mustRun(t, e, setup, `CREATE SHEET sales (region TEXT)`)
		mustRun(t, e, setup, `INSERT INTO sales VALUES ('`+wb+`')`)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wb := "north"
		if i%2 == 1 {
			wb = "south"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := e.NewSession()
			res := e.Query(t.Context(), sess, `USE `+wb, ExecOptions{})
			if !assert.True(t, res.Success, res.Error) {
				return
			}
			for range 20 {
				res := e.Query(t.Context(), sess, `SELECT region FROM sales`, ExecOptions{UseCache: true})
				if !assert.True(t, res.Success, res.Error) {
					return
				}
				assert.Equal(t, []any{wb}, res.Column("region"))
			}
		}()
	}
	wg.Wait()
}

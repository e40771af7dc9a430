package sheetsql

import (
	"sync"

	"github.com/google/uuid"
)

// Session is one logical client of an engine. It owns the current-workbook
// pointer used by statements that do not name a workbook. A session may be
// used from several goroutines.
type Session struct {
	id string

	mu       sync.RWMutex
	workbook string
}

func newSession() *Session {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Session{id: id.String()}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// CurrentWorkbook returns the workbook selected by USE or CREATE WORKBOOK,
// or the empty string.
func (s *Session) CurrentWorkbook() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workbook
}

func (s *Session) use(workbook string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workbook = workbook
}

// forget clears the current workbook if it is the given one
func (s *Session) forget(workbook string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workbook == workbook {
		s.workbook = ""
	}
}

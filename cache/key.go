// Package cache implements the three-tier SELECT result cache.
//
// Entries are keyed by workbook, the sorted set of sheets a statement reads
// and a fingerprint of its normalized SQL. Invalidation works on scopes: a
// whole workbook or one sheet of a workbook.
package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/nao1215/sheetsql/domain/model"
)

// ErrMalformedKey is returned when a stored key string cannot be parsed
var ErrMalformedKey = errors.New("malformed cache key")

// Key identifies one cached result
type Key struct {
	Workbook string
	// Sheets is sorted and free of duplicates
	Sheets []string
	// Hash is the hex xxh3-128 fingerprint of the normalized SQL
	Hash string
}

// NewKey builds the key of a statement. normalizedSQL should be the canonical
// rendering of the statement, so that spelling differences in keywords and
// whitespace map to one entry.
func NewKey(workbook string, sheets []string, normalizedSQL string) Key {
	sum := xxh3.HashString128(normalizedSQL).Bytes()
	return Key{
		Workbook: workbook,
		Sheets:   sortedUnique(sheets),
		Hash:     hex.EncodeToString(sum[:]),
	}
}

func sortedUnique(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	n := 0
	for i, s := range out {
		if i > 0 && s == out[n-1] {
			continue
		}
		out[n] = s
		n++
	}
	return out[:n]
}

// String renders the key as workbook:sheet1,sheet2:hash
func (k Key) String() string {
	return k.Workbook + ":" + strings.Join(k.Sheets, ",") + ":" + k.Hash
}

// ParseKey reverses Key.String
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	k := Key{Workbook: parts[0], Hash: parts[2]}
	if parts[1] != "" {
		k.Sheets = strings.Split(parts[1], ",")
	}
	return k, nil
}

// Scope selects the entries of a workbook, or of one sheet when Sheet is set
type Scope struct {
	Workbook string
	Sheet    string
}

// WorkbookScope selects every entry of a workbook
func WorkbookScope(workbook string) Scope {
	return Scope{Workbook: workbook}
}

// SheetScope selects the entries that read one sheet of a workbook
func SheetScope(workbook, sheet string) Scope {
	return Scope{Workbook: workbook, Sheet: sheet}
}

// Contains reports whether the entry under k belongs to the scope
func (s Scope) Contains(k Key) bool {
	if k.Workbook != s.Workbook {
		return false
	}
	if s.Sheet == "" {
		return true
	}
	i := sort.SearchStrings(k.Sheets, s.Sheet)
	return i < len(k.Sheets) && k.Sheets[i] == s.Sheet
}

// String renders the scope for logs
func (s Scope) String() string {
	if s.Sheet == "" {
		return s.Workbook
	}
	return s.Workbook + "." + s.Sheet
}

// Entry is a cached result with its bookkeeping
type Entry struct {
	Key       Key
	Result    *model.QueryResult
	HitCount  int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry must no longer be served at now
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

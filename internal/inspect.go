package internal

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var pages embed.FS

// DefaultPrefix lists every message when no prefix is given.
const DefaultPrefix = "msg:"

const (
	defaultLimit = 500
	maxValue     = 120
)

// KeyRow is one store entry split along the repository key layout.
type KeyRow struct {
	Key   string
	Kind  string
	At    string
	Owner string
	ID    string
	Value string
}

type Mapper func(key string, value []byte) KeyRow

type StatsFunc func() map[string]any

type inspectPage struct {
	Prefix    string
	Limit     int
	Truncated bool
	Rows      []KeyRow
	Stats     map[string]any
}

// ScanKeys maps at most limit entries under prefix. The boolean reports that more were left.
// A limit <= 0 means no limit.
func ScanKeys(db *badger.DB, prefix string, limit int, mapper Mapper) ([]KeyRow, bool, error) {
	if mapper == nil {
		mapper = MapKey
	}
	var rows []KeyRow
	truncated := false
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if limit > 0 && len(rows) == limit {
				truncated = true
				return nil
			}
			item := it.Item()
			if err := item.Value(func(value []byte) error {
				rows = append(rows, mapper(string(item.Key()), value))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return rows, truncated, err
}

// NewInspectHandler renders the entries of db under ?prefix=, capped by ?limit=.
// Scans run in a read transaction, a live store can be inspected.
func NewInspectHandler(db *badger.DB, mapper Mapper, stats StatsFunc) http.Handler {
	tmpl := template.Must(template.ParseFS(pages, "inspect.html"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := inspectPage{Prefix: r.URL.Query().Get("prefix"), Limit: defaultLimit}
		if page.Prefix == "" {
			page.Prefix = DefaultPrefix
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			page.Limit = limit
		}
		if stats != nil {
			page.Stats = stats()
		}

		var err error
		page.Rows, page.Truncated, err = ScanKeys(db, page.Prefix, page.Limit, mapper)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, page)
	})
}

// MapKey understands {kind}:{owner}:{ts19}:{id} (messages, notifications),
// {kind}:{owner}:{id} (members, pairs, blocks) and {kind}:{id} (users, conversations).
func MapKey(key string, value []byte) KeyRow {
	parts := strings.Split(key, ":")
	row := KeyRow{
		Key:   key,
		Kind:  strings.ToUpper(parts[0]),
		At:    "--:--:--",
		Owner: "-",
		ID:    "-",
		Value: "(empty)",
	}
	if len(value) > 0 {
		row.Value = clip(string(value), maxValue)
	}

	switch len(parts) {
	case 4:
		row.Owner = parts[1]
		if nanos, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.At = time.Unix(0, nanos).UTC().Format("15:04:05")
		}
		row.ID = shortID(parts[3])
	case 3:
		row.Owner = parts[1]
		row.ID = shortID(parts[2])
	case 2:
		row.ID = shortID(parts[1])
	}
	return row
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

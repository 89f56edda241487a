package internal

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openInMemory(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func put(t *testing.T, db *badger.DB, pairs ...string) {
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		for i := 0; i+1 < len(pairs); i += 2 {
			if err := txn.Set([]byte(pairs[i]), []byte(pairs[i+1])); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestMapKey(t *testing.T) {
	tests := []struct {
		description string
		key         string
		value       string
		expected    KeyRow
	}{
		{
			description: "Should split a timestamped message key",
			key:         "msg:room-1:0000000000000000000:0123456789abcdef",
			value:       `{}`,
			expected:    KeyRow{Kind: "MSG", Owner: "room-1", At: "00:00:00", ID: "01234567", Value: `{}`},
		},
		{
			description: "Should split a membership key with an empty value",
			key:         "member:alice:room-1",
			expected:    KeyRow{Kind: "MEMBER", Owner: "alice", At: "--:--:--", ID: "room-1", Value: "(empty)"},
		},
		{
			description: "Should split an entity key",
			key:         "user:alice",
			value:       `{"username":"alice"}`,
			expected:    KeyRow{Kind: "USER", Owner: "-", At: "--:--:--", ID: "alice", Value: `{"username":"alice"}`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)

			row := MapKey(tt.key, []byte(tt.value))

			tt.expected.Key = tt.key
			req.Equal(tt.expected, row)
		})
	}
}

func TestMapKey_Clips_Long_Values(t *testing.T) {
	req := require.New(t)
	long := make([]rune, 200)
	for i := range long {
		long[i] = 'é'
	}

	row := MapKey("user:alice", []byte(string(long)))

	req.Len([]rune(row.Value), maxValue+1)
	req.Equal("…", string([]rune(row.Value)[maxValue]))
}

func TestScanKeys_Limit(t *testing.T) {
	req := require.New(t)
	db := openInMemory(t)
	for i := 0; i < 5; i++ {
		put(t, db, fmt.Sprintf("user:u%d", i), "{}")
	}
	put(t, db, "conv:room-1", "{}")

	// When three users are asked for
	rows, truncated, err := ScanKeys(db, "user:", 3, nil)

	// Then the first three in key order come back, flagged as truncated
	req.NoError(err)
	req.True(truncated)
	req.Equal([]string{"u0", "u1", "u2"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})

	// When there is no limit
	rows, truncated, err = ScanKeys(db, "user:", 0, nil)
	req.NoError(err)
	req.False(truncated)
	req.Len(rows, 5)
}

func TestNewInspectHandler_Renders_Prefix(t *testing.T) {
	req := require.New(t)
	db := openInMemory(t)

	// Given a user and a conversation
	put(t, db, "user:alice", `{"username":"alice"}`, "conv:room-1", `{"users":["alice","bob"]}`)
	handler := NewInspectHandler(db, nil, func() map[string]any { return map[string]any{"connections": 2} })

	// When the users are inspected
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/debug/inspect?prefix=user:", nil))

	// Then only the user is listed
	req.Equal(http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	req.Contains(body, "alice")
	req.Contains(body, "connections")
	req.NotContains(body, "room-1")
}

func TestNewInspectHandler_Rejects_Bad_Limit(t *testing.T) {
	req := require.New(t)
	handler := NewInspectHandler(openInMemory(t), nil, nil)

	for _, limit := range []string{"0", "-3", "ten"} {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/debug/inspect?limit="+limit, nil))
		req.Equal(http.StatusBadRequest, recorder.Code, limit)
	}
}

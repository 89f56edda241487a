package internal

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// SplitList reads a comma separated environment value, blanks are skipped.
func SplitList(raw string) []string {
	items := lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Uniq(lo.Without(items, ""))
}

// ParsePairs reads "key=value,key=value".
func ParsePairs(raw string) (map[string]string, error) {
	pairs := make(map[string]string)
	for _, item := range SplitList(raw) {
		key, value, ok := strings.Cut(item, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("malformed pair %q, expected key=value", item)
		}
		pairs[key] = value
	}
	return pairs, nil
}

// BadgerOptions is shared by the server and the viewer.
// A read only store bypasses the directory lock so it can be opened next to a running server.
func BadgerOptions(path string, readOnly, debug bool) badger.Options {
	options := badger.DefaultOptions(path)
	if readOnly {
		options = options.WithReadOnly(true).WithBypassLockGuard(true)
	}
	if debug {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

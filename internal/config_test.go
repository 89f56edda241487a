package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitList(t *testing.T) {
	req := require.New(t)

	req.Equal([]string{"http://localhost:3000", "https://app.example"},
		SplitList(" http://localhost:3000, ,https://app.example,http://localhost:3000"))
	req.Empty(SplitList(""))
}

func TestParsePairs(t *testing.T) {
	req := require.New(t)

	pairs, err := ParsePairs("abc=alice, def=bob")
	req.NoError(err)
	req.Equal(map[string]string{"abc": "alice", "def": "bob"}, pairs)

	pairs, err = ParsePairs("")
	req.NoError(err)
	req.Empty(pairs)

	_, err = ParsePairs("abc=alice,def")
	req.Error(err)
	_, err = ParsePairs("=alice")
	req.Error(err)
}

func TestBadgerOptions(t *testing.T) {
	req := require.New(t)

	options := BadgerOptions("/tmp/chat", true, false)
	req.True(options.ReadOnly)
	req.True(options.BypassLockGuard)

	options = BadgerOptions("/tmp/chat", false, true)
	req.False(options.ReadOnly)
	req.Equal("/tmp/chat", options.Dir)
	req.NotNil(options.Logger)
}

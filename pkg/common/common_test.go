package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDint64Unique(t *testing.T) {
	seen := make(map[int64]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := UUIDint64()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestSetNodeID(t *testing.T) {
	require.NoError(t, SetNodeID(7))
	assert.Greater(t, UUIDint64(), int64(0))
	assert.Error(t, SetNodeID(4096))
	require.NoError(t, SetNodeID(1))
}

func TestIfEmptyStr(t *testing.T) {
	assert.Equal(t, NA, IfEmptyStr("  ", NA))
	assert.Equal(t, "x", IfEmptyStr("x", NA))
}

package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestAppendAndReplayOrder(t *testing.T) {
	log := openTestLog(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append("b", base.Add(time.Minute)))
	require.NoError(t, log.Append("a", base))
	require.NoError(t, log.Append("c", base.Add(2*time.Minute)))

	updates, err := log.Replay()
	require.NoError(t, err)
	require.Len(t, updates, 3)

	require.Equal(t, "a", updates[0].NodeID)
	require.Equal(t, "b", updates[1].NodeID)
	require.Equal(t, "c", updates[2].NodeID)
	require.Equal(t, base, updates[0].Timestamp)
}

func TestAppendSameTimestamp(t *testing.T) {
	log := openTestLog(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"x", "y", "z"} {
		require.NoError(t, log.Append(id, ts))
	}

	updates, err := log.Replay()
	require.NoError(t, err)
	require.Len(t, updates, 3, "updates sharing a timestamp must not collide")
}

func TestAppendEmptyID(t *testing.T) {
	log := openTestLog(t)
	require.Error(t, log.Append("", time.Now()))
}

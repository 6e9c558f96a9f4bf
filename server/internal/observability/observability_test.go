package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextLogsBaseFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	rc := NewRequestContextWithID(logger, "req-1", "review", "alice")
	rc.Info("reviewed", slog.String(LogFieldItemID, "item-9"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[LogFieldRequestID])
	assert.Equal(t, "alice", entry[LogFieldUserID])
	assert.Equal(t, "review", entry[LogFieldOperation])
	assert.Equal(t, "item-9", entry[LogFieldItemID])

	buf.Reset()
	rc.Error("failed", errors.New("boom"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
}

func TestRequestContextRoundTrip(t *testing.T) {
	rc := NewRequestContextWithID(nil, RequestIDFromContext(context.Background()), "sync", "bob")
	require.NotEmpty(t, rc.RequestID)

	ctx := WithRequestContext(context.Background(), rc)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, rc, got)
	assert.Equal(t, rc.RequestID, RequestIDFromContext(ctx))

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
	assert.NotEmpty(t, RequestIDFromContext(context.Background()))
}

func TestWithFieldsKeepsBaseFields(t *testing.T) {
	var buf bytes.Buffer
	rc := NewRequestContextWithID(slog.New(slog.NewJSONHandler(&buf, nil)), "req-2", "sync_all", "")
	rc.WithFields(slog.String("owner", "carol")).Warn("owner sync failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-2", entry[LogFieldRequestID])
	assert.Equal(t, "sync_all", entry[LogFieldOperation])
	assert.Equal(t, "carol", entry["owner"])
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.Observe("review", 10*time.Millisecond, false)
	m.Observe("review", 30*time.Millisecond, true)
	m.Observe("sync", time.Millisecond, false)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.RequestTotal)
	assert.Equal(t, int64(1), snap.RequestFailed)
	assert.Equal(t, []string{"review", "sync"}, snap.OperationNames())
	assert.Equal(t, int64(2), snap.Operations["review"].ExecutionCount)
	assert.Equal(t, int64(20), snap.Operations["review"].AverageDuration)
	assert.Equal(t, int64(1), snap.Operations["review"].ErrorCount)
	assert.InDelta(t, 66.67, snap.SuccessRate(), 0.01)

	assert.Equal(t, 100.0, NewMetrics().Snapshot().SuccessRate())
}

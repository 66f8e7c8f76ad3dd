package sse

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tsgate/internal/logger"
	"tsgate/internal/storemodel"
)

func TestWriter_WritesMonotonicFrameIds(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec, time.Hour, logger.NopLogger())

	require.NoError(t, w.WriteEvent("a"))
	require.NoError(t, w.WriteMessage("b"))
	require.NoError(t, w.WriteClose())

	body := rec.Body.String()
	require.Contains(t, body, "id: 1")
	require.Contains(t, body, "id: 2")
	require.Contains(t, body, "id: 3")
	require.Contains(t, body, "event: event")
	require.Contains(t, body, "event: message")
	require.Contains(t, body, "event: close")
}

func TestWriter_CloseIsIdempotent(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec, time.Hour, logger.NopLogger())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	require.NoError(t, w.WriteEvent("should be dropped"))
	require.False(t, strings.Contains(rec.Body.String(), "should be dropped"))
}

func TestWriter_KeepAliveEmitsLastScannedPeriodically(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec, 20*time.Millisecond, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	w.StartKeepAlive(ctx, func(meta storemodel.ItemMeta) string {
		return "scanned"
	})

	time.Sleep(60 * time.Millisecond)
	cancel()
	require.NoError(t, w.Close())

	require.Contains(t, rec.Body.String(), "keep_alive")
	require.Contains(t, rec.Body.String(), "scanned")
}

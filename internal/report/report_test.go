package report

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/d60-Lab/sagesync/internal/apperr"
	"github.com/d60-Lab/sagesync/pkg/logger"
)

func TestRecorder_SkipsSuppressedActions(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	r.Report(ctx, apperr.ErrActionDisabled, "")
	r.Report(ctx, context.Canceled, "")
	r.Report(ctx, nil, "")
	assert.Empty(t, r.Entries())

	r.Report(ctx, apperr.NewTransportError(500, "", nil), "Failed to like post")
	r.Report(ctx, errors.New("plain"), "Failed to add comment")

	got := r.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "HTTP 500", got[0].Message)
	assert.Equal(t, "Failed to add comment", got[1].Message)
	assert.Empty(t, r.Entries())
}

func TestMulti_FansOut(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	Multi(a, b, Nop).Report(context.Background(), apperr.Invalid("content", "must not be empty"), "")

	assert.Len(t, a.Entries(), 1)
	assert.Len(t, b.Entries(), 1)
	assert.Equal(t, "must not be empty", a.Entries()[0].Message)
}

func TestLogReporter_WritesWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(nil) })

	NewLog().Report(context.Background(), apperr.NewTransportError(404, "Post not found", nil), "Failed to like post")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Post not found", entries[0].Message)
	assert.EqualValues(t, 404, entries[0].ContextMap()["status"])
}

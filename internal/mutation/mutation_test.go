package mutation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/sagesync/internal/apperr"
	"github.com/d60-Lab/sagesync/internal/report"
)

type post struct {
	likes int
	liked bool
}

func likeMutation(p *post, commit func(context.Context) error) Mutation {
	prev := *p
	return Mutation{
		Name:     "toggle_like",
		Mutate:   func() { p.likes++; p.liked = true },
		Commit:   commit,
		Revert:   func() { *p = prev },
		Fallback: "Failed to like post",
	}
}

func TestApply_CommitKeepsEdit(t *testing.T) {
	rec := report.NewRecorder()
	c := NewController(rec)
	p := &post{likes: 10}
	committed := false

	m := likeMutation(p, func(context.Context) error { return nil })
	m.OnCommitted = func() { committed = true }
	require.NoError(t, c.Apply(context.Background(), m))

	assert.Equal(t, post{likes: 11, liked: true}, *p)
	assert.True(t, committed)
	assert.Empty(t, rec.Entries())
}

func TestApply_FailureRestoresExactly(t *testing.T) {
	rec := report.NewRecorder()
	c := NewController(rec)
	p := &post{likes: 10}
	var during post

	err := c.Apply(context.Background(), likeMutation(p, func(context.Context) error {
		during = *p
		return apperr.NewTransportError(500, "", nil)
	}))

	require.Error(t, err)
	assert.Equal(t, post{likes: 11, liked: true}, during)
	assert.Equal(t, post{likes: 10}, *p)

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "HTTP 500", entries[0].Message)
}

func TestConfirm_ReportsFailureOnce(t *testing.T) {
	rec := report.NewRecorder()
	c := NewController(rec)
	boom := errors.New("boom")

	err := c.Confirm(context.Background(), "create_post", "Failed to create post", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.Len(t, rec.Entries(), 1)
	assert.Equal(t, "Failed to create post", rec.Entries()[0].Message)

	require.NoError(t, c.Confirm(context.Background(), "create_post", "", func(context.Context) error { return nil }))
	assert.Len(t, rec.Entries(), 1)
}

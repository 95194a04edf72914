package artifact_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/radiumworks/imagepipe/internal/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_SaveAndOpen(t *testing.T) {
	s, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	jobID := uuid.New()

	written, err := s.Save(ctx, "alice", jobID, "scan.png", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("image-bytes")), written)

	rc, size, err := s.Open(ctx, "alice", jobID, "scan.png")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, written, size)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
}

func TestLocalStore_NamespacedByOwnerAndJob(t *testing.T) {
	s, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	jobA, jobB := uuid.New(), uuid.New()

	_, err = s.Save(ctx, "alice", jobA, "scan.png", strings.NewReader("alice-a"))
	require.NoError(t, err)
	_, err = s.Save(ctx, "alice", jobB, "scan.png", strings.NewReader("alice-b"))
	require.NoError(t, err)
	_, err = s.Save(ctx, "bob", jobA, "scan.png", strings.NewReader("bob-a"))
	require.NoError(t, err)

	rc, _, err := s.Open(ctx, "alice", jobA, "scan.png")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "alice-a", string(data))

	// Same filename under a different owner or job is a different object.
	rc, _, err = s.Open(ctx, "bob", jobA, "scan.png")
	require.NoError(t, err)
	defer rc.Close()
	data, err = io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "bob-a", string(data))
}

func TestLocalStore_OpenMissing(t *testing.T) {
	s, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Open(context.Background(), "alice", uuid.New(), "nope.png")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	jobID := uuid.New()

	bad := []string{"", "  ", "../escape.png", "a/b.png", `a\b.png`, "..", "x..y.png"}
	for _, name := range bad {
		_, err := s.Save(ctx, "alice", jobID, name, strings.NewReader("x"))
		assert.Error(t, err, "filename %q accepted", name)
	}

	_, err = s.Save(ctx, "../alice", jobID, "scan.png", strings.NewReader("x"))
	assert.Error(t, err, "owner with separator accepted")
}

func TestLocalStore_Overwrite(t *testing.T) {
	s, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	jobID := uuid.New()

	_, err = s.Save(ctx, "alice", jobID, "scan.png", strings.NewReader("old"))
	require.NoError(t, err)
	_, err = s.Save(ctx, "alice", jobID, "scan.png", strings.NewReader("new"))
	require.NoError(t, err)

	rc, _, err := s.Open(ctx, "alice", jobID, "scan.png")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestLocalStore_Delete(t *testing.T) {
	s, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	jobID := uuid.New()

	_, err = s.Save(ctx, "alice", jobID, "scan.png", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "alice", jobID, "scan.png"))

	_, _, err = s.Open(ctx, "alice", jobID, "scan.png")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "alice", jobID, "scan.png"), artifact.ErrNotFound)
}

package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memgraph/backend/internal/storage"
	apperrors "memgraph/backend/pkg/errors"
)

func TestGate_SharedHoldersCoexist(t *testing.T) {
	g := newGate(50 * time.Millisecond)
	ctx := context.Background()

	r1, err := g.acquire(ctx, false)
	require.NoError(t, err)
	r2, err := g.acquire(ctx, false)
	require.NoError(t, err)
	r1()
	r2()
}

func TestGate_ExclusiveBlocksShared(t *testing.T) {
	g := newGate(30 * time.Millisecond)
	ctx := context.Background()

	release, err := g.acquire(ctx, true)
	require.NoError(t, err)

	_, err = g.acquire(ctx, false)
	assert.ErrorIs(t, err, errGateTimeout)

	release()
	r, err := g.acquire(ctx, false)
	require.NoError(t, err)
	r()
}

func TestGate_HonoursCancellation(t *testing.T) {
	g := newGate(time.Minute)
	release, err := g.acquire(context.Background(), true)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.acquire(ctx, true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_WriteDuringExclusivePhaseConflicts(t *testing.T) {
	c := openTestClient(t)
	c.gate = newGate(30 * time.Millisecond)
	ctx := context.Background()

	entered := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = c.TransactExclusive(ctx, "hold", storage.TxSnapshotRead, func(q storage.Querier) error {
			close(entered)
			<-done
			return nil
		})
	}()
	<-entered

	_, err := c.CreateEntity(ctx, NewEntity{EntityID: "late", NodeType: "character", Name: "Late"})
	close(done)

	var conflict *apperrors.ErrConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "create_entity", conflict.Operation)
	assert.True(t, apperrors.IsRetryable(err))
}

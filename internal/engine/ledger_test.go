package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

func TestLedgerRecordAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	sess, err := f.engine.CreateSession(ctx, f.room.ID, "p")
	require.NoError(t, err)

	n := 0
	l := &Ledger{now: func() time.Time { return testNow }, newID: func() string { n++; return fmt.Sprintf("att-%d", n) }}
	record := func(stale bool, answer string) Recorded {
		var rec Recorded
		require.NoError(t, f.store.Atomically(ctx, func(tx escaperoom.Tx) error {
			if stale {
				tx = staleTx{tx}
			}
			var err error
			rec, err = l.RecordAttempt(ctx, tx, sess.ID, "obj-A", answer)
			return err
		}))
		return rec
	}

	wrong := record(false, "El Dorado")
	assert.False(t, wrong.Attempt.IsCorrect)
	assert.False(t, wrong.Conflict)

	first := record(false, " atlantis ")
	assert.Equal(t, "att-2", first.Attempt.ID)
	assert.Equal(t, 10, first.Attempt.PointsAwarded)
	assert.False(t, first.Conflict)

	again := record(false, "Atlantis")
	assert.Zero(t, again.Attempt.PointsAwarded)
	assert.False(t, again.Conflict)

	// With the prior award hidden, the store's single-award index refuses
	// the points and the attempt is kept without them.
	stale := record(true, "Atlantis")
	assert.True(t, stale.Conflict)
	assert.True(t, stale.Attempt.IsCorrect)
	assert.Zero(t, stale.Attempt.PointsAwarded)

	attempts, err := f.store.Attempts(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 4)
}

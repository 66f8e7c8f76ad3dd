package merge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tsgate/internal/storemodel"
)

func rawBatch(ts time.Time, seq int64) storemodel.StreamItem {
	msg := storemodel.Message{Id: storemodel.MessageId{Sequence: seq, Timestamp: ts}}
	return storemodel.RawBatch{
		ItemMeta: storemodel.ItemMeta{LastScannedTime: ts},
		Batch:    storemodel.MessageBatch{Messages: []storemodel.Message{msg}},
	}
}

func tick(ts time.Time) storemodel.StreamItem {
	return storemodel.EmptyTick{ItemMeta: storemodel.ItemMeta{LastScannedTime: ts}}
}

func TestMerger_OrdersAcrossStreamsByTimestamp(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()

	aIn := make(chan storemodel.StreamItem, 2)
	bIn := make(chan storemodel.StreamItem, 2)
	aIn <- rawBatch(t0.Add(2*time.Second), 1)
	aIn <- rawBatch(t0.Add(4*time.Second), 2)
	close(aIn)
	bIn <- rawBatch(t0.Add(1*time.Second), 1)
	bIn <- rawBatch(t0.Add(3*time.Second), 2)
	close(bIn)

	m := New(storemodel.DirectionAfter, []*Holder{
		NewHolder("a", storemodel.DirectionAfter, aIn),
		NewHolder("b", storemodel.DirectionAfter, bIn),
	})

	out := make(chan storemodel.StreamItem)
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(context.Background(), out) }()

	var order []time.Time
	for item := range out {
		order = append(order, item.Timestamp())
	}
	require.NoError(t, <-errCh)
	require.Len(t, order, 4)
	for i := 1; i < len(order); i++ {
		require.True(t, !order[i].Before(order[i-1]))
	}
}

func TestMerger_ReversesOrderForBeforeDirection(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()

	aIn := make(chan storemodel.StreamItem, 2)
	aIn <- rawBatch(t0.Add(3*time.Second), 2)
	aIn <- rawBatch(t0.Add(1*time.Second), 1)
	close(aIn)

	m := New(storemodel.DirectionBefore, []*Holder{
		NewHolder("a", storemodel.DirectionBefore, aIn),
	})

	out := make(chan storemodel.StreamItem)
	go func() { _ = m.Run(context.Background(), out) }()

	var order []time.Time
	for item := range out {
		order = append(order, item.Timestamp())
	}
	require.Len(t, order, 2)
	require.True(t, order[0].After(order[1]))
}

func TestMerger_DropsTicksFromOutputButAdvancesHolder(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()

	aIn := make(chan storemodel.StreamItem, 3)
	aIn <- tick(t0)
	aIn <- rawBatch(t0.Add(time.Second), 1)
	close(aIn)

	m := New(storemodel.DirectionAfter, []*Holder{
		NewHolder("a", storemodel.DirectionAfter, aIn),
	})

	out := make(chan storemodel.StreamItem)
	go func() { _ = m.Run(context.Background(), out) }()

	var received []storemodel.StreamItem
	for item := range out {
		received = append(received, item)
	}
	require.Len(t, received, 1)
	require.False(t, received[0].IsTick())
}

func TestMerger_TieBreaksByStreamNameThenSequence(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()

	aIn := make(chan storemodel.StreamItem, 1)
	bIn := make(chan storemodel.StreamItem, 1)
	aIn <- rawBatch(t0, 5)
	close(aIn)
	bIn <- rawBatch(t0, 1)
	close(bIn)

	m := New(storemodel.DirectionAfter, []*Holder{
		NewHolder("zzz", storemodel.DirectionAfter, aIn),
		NewHolder("aaa", storemodel.DirectionAfter, bIn),
	})

	holderB := m.holders[1]
	holderA := m.holders[0]
	require.NoError(t, holderA.pop(context.Background()))
	require.NoError(t, holderB.pop(context.Background()))

	winner := m.pick()
	require.Equal(t, "aaa", winner.StreamName)
}

func TestMerger_AdvancesLaggardTickForBeforeDirection(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()

	// Both streams are idle (ticks only). "ahead" has scanned further back
	// in time (smaller LastScannedTime); "behind" has barely moved. For a
	// BEFORE search the laggard is the one with the larger LastScannedTime,
	// so its tick must be picked first.
	aheadIn := make(chan storemodel.StreamItem, 1)
	behindIn := make(chan storemodel.StreamItem, 1)
	aheadIn <- tick(t0.Add(-time.Hour))
	behindIn <- tick(t0)

	m := New(storemodel.DirectionBefore, []*Holder{
		NewHolder("ahead", storemodel.DirectionBefore, aheadIn),
		NewHolder("behind", storemodel.DirectionBefore, behindIn),
	})

	ahead := m.holders[0]
	behind := m.holders[1]
	require.NoError(t, ahead.pop(context.Background()))
	require.NoError(t, behind.pop(context.Background()))

	winner := m.pick()
	require.Equal(t, "behind", winner.StreamName)
}

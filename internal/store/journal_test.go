package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/toglayer/internal/ir"
)

func TestBeginSession_Defaults(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginSession(ctx, Session{Token: "s-1", ConfigHash: "abc", Label: "demo"}))
	require.NoError(t, s.BeginSession(ctx, Session{Token: "s-1", ConfigHash: "other"}))

	sess, err := s.ReadSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, Session{
		Token:          "s-1",
		ConfigHash:     "abc",
		EngineVersion:  ir.EngineVersion,
		JournalVersion: ir.JournalVersion,
		Label:          "demo",
	}, sess)
}

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestListSessions_Ordered(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "b")
	createTestSession(t, s, "a")

	sessions, err := s.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].Token)
	assert.Equal(t, "b", sessions[1].Token)
}

func TestRecordInput_RoundTripsEveryKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s-1")

	events := []ir.Event{
		ir.NewBindingEvent("mouse", 3, 200),
		ir.NewPositionEvent(5, true, 250),
		ir.NewKeycodeEvent(ir.UsagePageKeyboard, 0xE1, false, 251),
		ir.NewMovementEvent(252),
		ir.NewDeferredEvent(ir.Deferred{Instance: "mouse", Slot: ir.SlotDeactivate, Token: 7, At: 250, Due: 550}),
	}
	for i, ev := range events {
		require.NoError(t, s.RecordInput(ctx, "s-1", int64(i+1), ev))
	}

	inputs, err := s.ReadInputs(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, inputs, len(events))
	for i, in := range inputs {
		assert.Equal(t, int64(i+1), in.Seq)
		assert.Equal(t, events[i], in.Event)
	}
}

func TestRecordInput_RequiresSession(t *testing.T) {
	s := createTestStore(t)

	err := s.RecordInput(context.Background(), "unknown", 1, ir.NewMovementEvent(1))
	assert.Error(t, err)
}

func TestRecordInput_DuplicateSeqIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s-1")

	require.NoError(t, s.RecordInput(ctx, "s-1", 1, ir.NewMovementEvent(1)))
	require.NoError(t, s.RecordInput(ctx, "s-1", 1, ir.NewMovementEvent(2)))

	inputs, err := s.ReadInputs(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, ir.Timestamp(1), inputs[0].Event.Timestamp())
}

func TestRecordTransition_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s-1")
	pos := ir.Position(5)

	in := []ir.Transition{
		{Session: "s-1", Seq: 2, Instance: "mouse", Kind: ir.TransitionLayerActivated, Layer: 3, Timestamp: 200, From: ir.StateIdle, To: ir.StateActive},
		{Session: "s-1", Seq: 4, Instance: "mouse", Kind: ir.TransitionLayerDeactivated, Layer: 3, Timestamp: 250, From: ir.StateActive, To: ir.StateIdle, Position: &pos},
	}
	for _, tr := range in {
		require.NoError(t, s.RecordTransition(ctx, tr))
	}

	out, err := s.ReadTransitions(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	n, err := s.CountTransitions(ctx, "s-1", ir.TransitionLayerActivated)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReadTransitions_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	out, err := s.ReadTransitions(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestMarshalEvent_Canonical(t *testing.T) {
	payload, err := marshalEvent(ir.NewKeycodeEvent(ir.UsagePageKeyboard, 0x04, true, 10))
	require.NoError(t, err)
	assert.Equal(t, `{"keycode":4,"pressed":true,"timestamp":10,"usage_page":7}`, payload)

	_, err = marshalEvent(ir.Event{Kind: "bogus"})
	assert.Error(t, err)
}

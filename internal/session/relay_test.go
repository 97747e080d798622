package session

import (
	"context"
	"encoding/json"
	"testing"

	"codesync/internal/signaling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	offerJSON     = `{"type":"offer","sdp":"v=0\r\n"}`
	answerJSON    = `{"type":"answer","sdp":"v=0\r\n"}`
	candidateJSON = `{"candidate":"candidate:1 1 udp 2122260223 10.0.0.1 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`
)

func relayFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.join(t, "c1", "ABCD", "alice")
	f.join(t, "c2", "ABCD", "bob")
	f.join(t, "c3", "OTHER", "carol")
	f.bc.reset()
	return f
}

func TestRelayForwardsVerbatim(t *testing.T) {
	f := relayFixture(t)
	ctx := context.Background()

	cases := []struct {
		kind    signaling.Kind
		payload string
		event   string
	}{
		{signaling.KindOffer, offerJSON, EventWebRTCOffer},
		{signaling.KindAnswer, answerJSON, EventWebRTCAnswer},
		{signaling.KindCandidate, candidateJSON, EventWebRTCICE},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			f.bc.reset()
			err := f.coord.Relay(ctx, "c1", signaling.Envelope{
				Kind:    tc.kind,
				RoomID:  "ABCD",
				To:      "c2",
				Payload: json.RawMessage(tc.payload),
			})
			require.NoError(t, err)

			got := f.bc.events(tc.event)
			require.Len(t, got, 1)
			assert.Equal(t, "conn", got[0].kind)
			assert.Equal(t, "c2", got[0].target)

			sig := got[0].payload.(RelayedSignal)
			assert.Equal(t, "c1", sig.From)
			assert.Equal(t, "alice", sig.FromUser)
			raw, err := json.Marshal(sig)
			require.NoError(t, err)
			assert.Contains(t, string(raw), tc.payload)
		})
	}
}

func TestRelayRejections(t *testing.T) {
	f := relayFixture(t)
	ctx := context.Background()

	err := f.coord.Relay(ctx, "c1", signaling.Envelope{
		Kind: signaling.KindOffer, RoomID: "ABCD", To: "c2", Payload: json.RawMessage(`{"type":"offer"}`),
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	err = f.coord.Relay(ctx, "c1", signaling.Envelope{
		Kind: signaling.KindOffer, RoomID: "ABCD", To: "c3", Payload: json.RawMessage(offerJSON),
	})
	assert.ErrorIs(t, err, ErrTargetUnavailable)

	err = f.coord.Relay(ctx, "c1", signaling.Envelope{
		Kind: signaling.KindAnswer, RoomID: "ABCD", To: "c1", Payload: json.RawMessage(answerJSON),
	})
	assert.ErrorIs(t, err, ErrTargetUnavailable)

	err = f.coord.Relay(ctx, "c3", signaling.Envelope{
		Kind: signaling.KindOffer, RoomID: "ABCD", To: "c2", Payload: json.RawMessage(offerJSON),
	})
	assert.ErrorIs(t, err, ErrNotMember)

	assert.Empty(t, f.bc.events(EventWebRTCOffer))
	assert.Empty(t, f.bc.events(EventWebRTCAnswer))
}

func TestRelayCandidateFailuresAreSilent(t *testing.T) {
	f := relayFixture(t)
	ctx := context.Background()

	for _, env := range []signaling.Envelope{
		{Kind: signaling.KindCandidate, RoomID: "ABCD", To: "gone", Payload: json.RawMessage(candidateJSON)},
		{Kind: signaling.KindCandidate, RoomID: "ABCD", To: "c2", Payload: json.RawMessage(`{"candidate":""}`)},
		{Kind: signaling.KindCandidate, RoomID: "OTHER", To: "c3", Payload: json.RawMessage(candidateJSON)},
	} {
		assert.NoError(t, f.coord.Relay(ctx, "c1", env))
	}
	assert.Empty(t, f.bc.events(EventWebRTCICE))
}

func TestRelayAfterTargetLeft(t *testing.T) {
	f := relayFixture(t)
	ctx := context.Background()
	require.NoError(t, f.coord.Disconnect(ctx, "c2"))

	err := f.coord.Relay(ctx, "c1", signaling.Envelope{
		Kind: signaling.KindOffer, RoomID: "ABCD", To: "c2", Payload: json.RawMessage(offerJSON),
	})
	assert.ErrorIs(t, err, ErrTargetUnavailable)
}

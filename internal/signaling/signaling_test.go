package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		kind    Kind
		payload string
		wantErr error
	}{
		{"offer", KindOffer, `{"type":"offer","sdp":"v=0\r\n"}`, nil},
		{"answer", KindAnswer, `{"type":"answer","sdp":"v=0\r\n"}`, nil},
		{"candidate", KindCandidate, `{"candidate":"candidate:1 1 udp 2122260223 10.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}`, nil},
		{"answer tagged as offer", KindOffer, `{"type":"answer","sdp":"v=0\r\n"}`, ErrKindMismatch},
		{"offer without sdp", KindOffer, `{"type":"offer","sdp":""}`, ErrEmptySDP},
		{"empty candidate", KindCandidate, `{"candidate":""}`, ErrEmptyCandidate},
		{"null", KindOffer, `null`, ErrEmptyPayload},
		{"missing", KindAnswer, ``, ErrEmptyPayload},
		{"string", KindCandidate, `"candidate:1"`, ErrNotObject},
		{"unknown kind", Kind("renegotiate"), `{"type":"offer","sdp":"v=0"}`, ErrUnknownKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.kind, json.RawMessage(tc.payload))
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestValidateRejectsUndecodableDescription(t *testing.T) {
	err := Validate(KindOffer, json.RawMessage(`{"type":42,"sdp":"v=0"}`))
	assert.Error(t, err)
}

package signaling

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptionEnvelope(t *testing.T) {
	raw, err := Encode(DescriptionEnvelope(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  "v=0",
	}))
	require.NoError(t, err)

	env, err := Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, env.Description)
	assert.Nil(t, env.Candidate)
	assert.Equal(t, webrtc.SDPTypeOffer, env.Description.Type)
}

func TestParseCandidateEnvelope(t *testing.T) {
	cand := "candidate:1 1 UDP 2122252543 10.0.0.1 54321 typ host"
	raw, err := Encode(CandidateEnvelope(webrtc.ICECandidateInit{Candidate: cand}))
	require.NoError(t, err)

	env, err := Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, env.Candidate)
	assert.Nil(t, env.Description)
	assert.Equal(t, cand, env.Candidate.Candidate)
}

func TestParseRejectsEmptyEnvelope(t *testing.T) {
	_, err := Parse([]byte(`{}`))
	assert.Error(t, err)
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	assert.Error(t, err)
}

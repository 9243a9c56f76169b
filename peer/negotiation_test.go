package peer

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func TestIsOfferCollisionImpolite(t *testing.T) {
	cases := []struct {
		name        string
		incoming    webrtc.SDPType
		makingOffer bool
		state       webrtc.SignalingState
		collides    bool
	}{
		{"answer never collides", webrtc.SDPTypeAnswer, true, webrtc.SignalingStateHaveLocalOffer, false},
		{"stable offer is fine", webrtc.SDPTypeOffer, false, webrtc.SignalingStateStable, false},
		{"glare while making offer", webrtc.SDPTypeOffer, true, webrtc.SignalingStateStable, true},
		{"offer mid local-offer", webrtc.SDPTypeOffer, false, webrtc.SignalingStateHaveLocalOffer, true},
		{"offer mid remote-offer", webrtc.SDPTypeOffer, false, webrtc.SignalingStateHaveRemoteOffer, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.collides, isOfferCollision(c.incoming, c.makingOffer, c.state))
		})
	}
}

func TestRegistryAddGetRemove(t *testing.T) {
	reg := NewRegistry()
	a := &Adapter{ID: "abc"}

	reg.Add(a)
	got, ok := reg.Get("abc")
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 1, reg.Len())

	reg.Remove("abc")
	_, ok = reg.Get("abc")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryEachVisitsEveryLiveAdapter(t *testing.T) {
	reg := NewRegistry()
	reg.Add(&Adapter{ID: "one"})
	reg.Add(&Adapter{ID: "two"})

	seen := make(map[string]bool)
	reg.Each(func(a *Adapter) { seen[a.ID] = true })

	assert.Len(t, seen, 2)
	assert.True(t, seen["one"])
	assert.True(t, seen["two"])
}

func TestSwapSenderReturnsPrevious(t *testing.T) {
	a := &Adapter{ID: "sink"}

	prev := a.SwapSender(nil)
	assert.Nil(t, prev)

	sender := &webrtc.RTPSender{}
	prev = a.SwapSender(sender)
	assert.Nil(t, prev)

	prev = a.SwapSender(nil)
	assert.Same(t, sender, prev)
}

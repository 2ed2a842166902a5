package events

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

func testBridge(broadcast func(channel string, message map[string]any) int) *Bridge {
	return &Bridge{
		prefix:    "notify",
		broadcast: broadcast,
		logger:    zerolog.Nop(),
	}
}

func TestHandle_RoutesSubjectToChannel(t *testing.T) {
	var gotChannel string
	var gotMessage map[string]any
	b := testBridge(func(channel string, message map[string]any) int {
		gotChannel = channel
		gotMessage = message
		return 1
	})

	b.handle(&nats.Msg{
		Subject: "notify.user:42",
		Data:    []byte(`{"type":"offer_sent","offerId":"o-7"}`),
	})

	if gotChannel != "user:42" {
		t.Errorf("channel: got %q, want user:42", gotChannel)
	}
	if gotMessage["type"] != "offer_sent" || gotMessage["offerId"] != "o-7" {
		t.Errorf("message: got %v", gotMessage)
	}
}

func TestHandle_NestedSubjectKeepsRemainder(t *testing.T) {
	var gotChannel string
	b := testBridge(func(channel string, message map[string]any) int {
		gotChannel = channel
		return 0
	})

	b.handle(&nats.Msg{Subject: "notify.match.eu-west", Data: []byte(`{}`)})

	if gotChannel != "match.eu-west" {
		t.Errorf("channel: got %q, want match.eu-west", gotChannel)
	}
}

func TestHandle_UnroutableSubjectDropped(t *testing.T) {
	called := false
	b := testBridge(func(channel string, message map[string]any) int {
		called = true
		return 0
	})

	b.handle(&nats.Msg{Subject: "other.user:42", Data: []byte(`{}`)})
	b.handle(&nats.Msg{Subject: "notify.", Data: []byte(`{}`)})

	if called {
		t.Error("unroutable subjects must not reach the broadcast engine")
	}
}

func TestHandle_BadPayloadDropped(t *testing.T) {
	called := false
	b := testBridge(func(channel string, message map[string]any) int {
		called = true
		return 0
	})

	b.handle(&nats.Msg{Subject: "notify.global", Data: []byte(`not json`)})

	if called {
		t.Error("undecodable payloads must not reach the broadcast engine")
	}
}

func TestHandle_NilBroadcastIsNoOp(t *testing.T) {
	b := testBridge(nil)

	// Must not panic.
	b.handle(&nats.Msg{Subject: "notify.global", Data: []byte(`{"type":"x"}`)})
}

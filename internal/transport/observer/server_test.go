package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"colonysim.ai/internal/observerproto"
	"colonysim.ai/internal/sim/colony"
	"colonysim.ai/internal/sim/colony/colonytest"
)

func startColony(t *testing.T) *colony.Colony {
	t.Helper()
	cfg := colonytest.Config(1)
	cfg.TickRateHz = 50
	h := colonytest.New(t, &cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Colony.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		h.Colony.Stop()
	})
	return h.Colony
}

func TestBootstrap_DescribesColony(t *testing.T) {
	c := startColony(t)
	srv := httptest.NewServer(NewServer(c, nil).BootstrapHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ColonyID != c.ID() || body.ProtocolVersion != observerproto.Version {
		t.Fatalf("unexpected bootstrap: %+v", body)
	}
	if len(body.Stations) != 5 || len(body.Colonists) != 3 || len(body.MetaTasks) != 5 {
		t.Fatalf("stations=%d colonists=%d metas=%d", len(body.Stations), len(body.Colonists), len(body.MetaTasks))
	}
}

func TestWSHandler_StreamsTicksAfterSubscribe(t *testing.T) {
	c := startColony(t)
	srv := httptest.NewServer(NewServer(c, nil).WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var tick colony.ObserverTick
	if err := conn.ReadJSON(&tick); err != nil {
		t.Fatalf("read tick: %v", err)
	}
	if tick.Type != colony.ObserverTickType || tick.ColonyID != c.ID() {
		t.Fatalf("unexpected tick: %+v", tick)
	}
	if len(tick.Colonists) != 3 {
		t.Fatalf("colonists=%d want=3", len(tick.Colonists))
	}
}

func TestWSHandler_RejectsBadSubscribe(t *testing.T) {
	c := startColony(t)
	srv := httptest.NewServer(NewServer(c, nil).WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: "HELLO", ProtocolVersion: observerproto.Version}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.4:9000":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}

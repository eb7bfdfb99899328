package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"colonysim.ai/internal/protocol"
	"colonysim.ai/internal/sim/colony/colonytest"
)

func dialOperator(t *testing.T) *websocket.Conn {
	t.Helper()
	cfg := colonytest.Config(1)
	cfg.TickRateHz = 50
	h := colonytest.New(t, &cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Colony.Run(ctx) }()

	srv := httptest.NewServer(NewServer(h.Colony, nil).Handler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Close()
		cancel()
		h.Colony.Stop()
	})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, OperatorName: "ops"}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	var w protocol.WelcomeMsg
	readMsg(t, conn, &w)
	for i := 0; i < 3; i++ {
		var c protocol.CatalogMsg
		readMsg(t, conn, &c)
		if c.Type != protocol.TypeCatalog {
			t.Fatalf("expected CATALOG, got %s", c.Type)
		}
	}
	return w
}

func TestHandshake_WelcomeAndCatalogs(t *testing.T) {
	conn := dialOperator(t)
	w := hello(t, conn)
	if w.Type != protocol.TypeWelcome || w.SessionID == "" {
		t.Fatalf("unexpected welcome: %+v", w)
	}
	if w.Catalogs.Colonists.Count != 3 || w.Catalogs.Behaviors.Count != 5 {
		t.Fatalf("catalog counts: %+v", w.Catalogs)
	}
}

func TestQueueTask_AckAndErrors(t *testing.T) {
	conn := dialOperator(t)
	hello(t, conn)

	send := func(reqID, worker, task string) protocol.AckMsg {
		t.Helper()
		if err := conn.WriteJSON(protocol.QueueTaskMsg{
			Type:            protocol.TypeQueueTask,
			ProtocolVersion: protocol.Version,
			ReqID:           reqID,
			WorkerID:        worker,
			Task:            task,
		}); err != nil {
			t.Fatalf("write: %v", err)
		}
		var ack protocol.AckMsg
		readMsg(t, conn, &ack)
		return ack
	}

	if ack := send("R1", "C2", "Research"); !ack.Accepted || ack.AckFor != "R1" {
		t.Fatalf("expected accepted ack: %+v", ack)
	}
	if ack := send("R2", "nobody", "Research"); ack.Accepted || ack.Code != protocol.ErrUnknownWorker {
		t.Fatalf("expected unknown worker: %+v", ack)
	}
	if ack := send("R3", "C1", "Juggle"); ack.Accepted || ack.Code != protocol.ErrUnknownTask {
		t.Fatalf("expected unknown task: %+v", ack)
	}
	if ack := send("", "C1", "Relax"); ack.Accepted || ack.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("expected schema rejection: %+v", ack)
	}
}

func TestHandshake_RejectsNonHello(t *testing.T) {
	conn := dialOperator(t)
	if err := conn.WriteJSON(protocol.QueueTaskMsg{Type: protocol.TypeQueueTask, ProtocolVersion: protocol.Version}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

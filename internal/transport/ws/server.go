package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"colonysim.ai/internal/protocol"
	"colonysim.ai/internal/sim/colony"
	"colonysim.ai/internal/sim/meta"
)

// Server accepts operator sessions that queue MetaTasks on colonists.
type Server struct {
	colony *colony.Colony
	log    *log.Logger

	// QueueTimeout bounds how long a QUEUE_TASK waits for the colony loop.
	QueueTimeout time.Duration

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(c *colony.Colony, logger *log.Logger) *Server {
	s := &Server{
		colony:       c,
		log:          logger,
		QueueTimeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, out := s.handshake(conn)
		if sid == "" {
			return
		}
		if s.log != nil {
			s.log.Printf("operator %s connected from %s", sid, r.RemoteAddr)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				s.send(ctx, out, s.reject("", protocol.ErrProtoBadRequest, "bad json"))
				continue
			}
			if base.Type != protocol.TypeQueueTask {
				continue
			}
			s.send(ctx, out, s.handleQueueTask(ctx, msg))
		}
	}
}

func (s *Server) handleQueueTask(ctx context.Context, msg []byte) protocol.AckMsg {
	if err := protocol.Validate(protocol.TypeQueueTask, msg); err != nil {
		return s.reject("", protocol.ErrProtoBadRequest, err.Error())
	}
	var q protocol.QueueTaskMsg
	if err := json.Unmarshal(msg, &q); err != nil {
		return s.reject("", protocol.ErrProtoBadRequest, err.Error())
	}
	if q.ProtocolVersion != protocol.Version {
		return s.reject(q.ReqID, protocol.ErrProtoBadRequest, "bad protocol_version")
	}

	resp := make(chan error, 1)
	req := colony.QueueRequest{
		QueuedTask: colony.QueuedTask{WorkerID: q.WorkerID, Task: q.Task},
		Resp:       resp,
	}
	select {
	case s.colony.Queue() <- req:
	default:
		return s.reject(q.ReqID, protocol.ErrColonyBusy, "queue full")
	}

	timer := time.NewTimer(s.QueueTimeout)
	defer timer.Stop()
	select {
	case err := <-resp:
		if err != nil {
			return s.reject(q.ReqID, codeFor(err), err.Error())
		}
		return protocol.AckMsg{
			Type:            protocol.TypeAck,
			ProtocolVersion: protocol.Version,
			AckFor:          q.ReqID,
			Accepted:        true,
			ServerTick:      s.colony.CurrentTick(),
			ColonyID:        s.colony.ID(),
		}
	case <-timer.C:
		return s.reject(q.ReqID, protocol.ErrTimeout, "colony did not answer")
	case <-ctx.Done():
		return s.reject(q.ReqID, protocol.ErrInternal, "session closed")
	}
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, colony.ErrUnknownWorker):
		return protocol.ErrUnknownWorker
	case errors.Is(err, meta.ErrUnknownMetaTask):
		return protocol.ErrUnknownTask
	default:
		return protocol.ErrInternal
	}
}

func (s *Server) reject(reqID, code, message string) protocol.AckMsg {
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          reqID,
		Accepted:        false,
		Code:            code,
		Message:         message,
		ServerTick:      s.colony.CurrentTick(),
		ColonyID:        s.colony.ID(),
	}
}

func (s *Server) send(ctx context.Context, out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}
	if err := protocol.Validate(protocol.TypeHello, msg); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)
	sessionID = fmt.Sprintf("S%d", s.nextID.Add(1))

	welcome, catalogs := s.welcome(sessionID)
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}
	for _, c := range catalogs {
		if err := writeJSON(conn, c); err != nil {
			return "", nil
		}
	}
	return sessionID, out
}

func (s *Server) welcome(sessionID string) (protocol.WelcomeMsg, []protocol.CatalogMsg) {
	cfg := s.colony.Config()
	cats := s.colony.Catalogs()

	metaNames := make([]string, 0)
	for _, mt := range s.colony.MetaTasks() {
		metaNames = append(metaNames, mt.Name())
	}

	w := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		ColonyID:        cfg.ID,
		RunID:           s.colony.RunID(),
		Tick:            s.colony.CurrentTick(),
		Params: protocol.ColonyParams{
			TickRateHz:  cfg.TickRateHz,
			TimePerTick: cfg.TimePerTick,
			SolLength:   cfg.SolLength,
			Seed:        cfg.Seed,
			BoundaryR:   cfg.BoundaryR,
		},
		Catalogs: protocol.CatalogDigests{
			Stations:  protocol.DigestRef{Digest: cats.Stations.Digest, Count: len(cats.Stations.Defs)},
			Colonists: protocol.DigestRef{Digest: cats.Colonists.Digest, Count: len(cats.Colonists.Defs)},
			Behaviors: protocol.DigestRef{Digest: cats.Behaviors.Digest, Count: len(metaNames)},
		},
	}
	catalogs := []protocol.CatalogMsg{
		{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: "meta_tasks", Digest: cats.Behaviors.Digest, Part: 1, TotalParts: 1, Data: metaNames},
		{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: "colonists", Digest: cats.Colonists.Digest, Part: 1, TotalParts: 1, Data: cats.Colonists.Defs},
		{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: "stations", Digest: cats.Stations.Digest, Part: 1, TotalParts: 1, Data: cats.Stations.Defs},
	}
	return w, catalogs
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// wsServer accepts one websocket connection, records the first frame it
// receives and lets the test push frames back to the client.
type wsServer struct {
	srv      *httptest.Server
	joined   chan []byte
	outbound chan []byte
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	ws := &wsServer{
		joined:   make(chan []byte, 4),
		outbound: make(chan []byte, 4),
	}

	upgrader := websocket.Upgrader{}
	ws.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime/v1/websocket" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("apikey") != "anon-key" {
			t.Errorf("apikey = %q", r.URL.Query().Get("apikey"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		go func() {
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				ws.joined <- msg
			}
		}()
		for frame := range ws.outbound {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}))
	t.Cleanup(func() {
		close(ws.outbound)
		ws.srv.Close()
	})
	return ws
}

func TestSubscribeSendsPhoenixJoin(t *testing.T) {
	ws := newWSServer(t)
	rc := NewRealtimeClient(ws.srv.URL, "anon-key")

	ctx := context.Background()
	if err := rc.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rc.Disconnect()

	if err := rc.SubscribeToTable(ctx, "jobs", func(TableChange) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case frame := <-ws.joined:
		if got := gjson.GetBytes(frame, "topic").String(); got != "realtime:public:jobs" {
			t.Fatalf("topic = %q", got)
		}
		if got := gjson.GetBytes(frame, "event").String(); got != "phx_join" {
			t.Fatalf("event = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("join frame never arrived")
	}
}

func TestChangeFrameReachesHandler(t *testing.T) {
	ws := newWSServer(t)
	rc := NewRealtimeClient(ws.srv.URL, "anon-key")

	ctx := context.Background()
	if err := rc.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rc.Disconnect()

	changes := make(chan TableChange, 1)
	if err := rc.SubscribeToTable(ctx, "jobs", func(c TableChange) { changes <- c }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ws.outbound <- []byte(`{
		"topic": "realtime:public:jobs",
		"event": "INSERT",
		"payload": {"type": "INSERT", "table": "jobs", "record": {"id": "j1"}}
	}`)

	select {
	case c := <-changes:
		if c.Table != "jobs" || c.Event != "INSERT" {
			t.Fatalf("change = %+v", c)
		}
		if gjson.GetBytes(c.Record, "id").String() != "j1" {
			t.Fatalf("record = %s", c.Record)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("change never dispatched")
	}
}

func TestNonChangeFramesAreIgnored(t *testing.T) {
	ws := newWSServer(t)
	rc := NewRealtimeClient(ws.srv.URL, "anon-key")

	ctx := context.Background()
	if err := rc.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rc.Disconnect()

	changes := make(chan TableChange, 1)
	if err := rc.SubscribeToTable(ctx, "jobs", func(c TableChange) { changes <- c }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ws.outbound <- []byte(`{"topic": "phoenix", "event": "phx_reply", "payload": {}}`)
	ws.outbound <- []byte(`{"topic": "realtime:public:jobs", "event": "phx_reply", "payload": {"status": "ok"}}`)

	select {
	case c := <-changes:
		t.Fatalf("unexpected dispatch: %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscribeRequiresConnection(t *testing.T) {
	rc := NewRealtimeClient("http://localhost:1", "anon-key")
	if err := rc.SubscribeToTable(context.Background(), "jobs", func(TableChange) {}); err == nil {
		t.Fatal("expected error before connect")
	}
}

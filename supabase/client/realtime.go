// Realtime subscription support over the Supabase Phoenix websocket.
package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// ChangeHandler receives a postgres change notification for a table.
type ChangeHandler func(change TableChange)

// TableChange describes one database change event.
type TableChange struct {
	Table  string
	Event  string // INSERT, UPDATE, DELETE
	Record []byte // raw JSON of the new row, when present
}

// RealtimeClient maintains the websocket connection and dispatches table
// change events to handlers.
type RealtimeClient struct {
	mu       sync.RWMutex
	url      string
	conn     *websocket.Conn
	handlers map[string][]ChangeHandler // table -> handlers
	done     chan struct{}
	ref      int
}

// NewRealtimeClient creates a realtime client for a Supabase project.
func NewRealtimeClient(supabaseURL, apiKey string) *RealtimeClient {
	wsURL := supabaseURL
	if strings.HasPrefix(wsURL, "https") {
		wsURL = "wss" + wsURL[len("https"):]
	} else if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + wsURL[len("http"):]
	}
	wsURL = strings.TrimSuffix(wsURL, "/") + "/realtime/v1/websocket?apikey=" + apiKey + "&vsn=1.0.0"

	return &RealtimeClient{
		url:      wsURL,
		handlers: make(map[string][]ChangeHandler),
		done:     make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the reader and
// heartbeat loops.
func (r *RealtimeClient) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	r.conn = conn
	r.done = make(chan struct{})

	go r.readLoop()
	go r.heartbeat()
	return nil
}

// Disconnect closes the websocket connection.
func (r *RealtimeClient) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	close(r.done)

	_ = r.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	err := r.conn.Close()
	r.conn = nil
	return err
}

// SubscribeToTable joins the channel for all changes on a public table and
// registers the handler. The filter is applied at read time by the caller's
// re-list, so no server-side filter is set here.
func (r *RealtimeClient) SubscribeToTable(ctx context.Context, table string, handler ChangeHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return fmt.Errorf("realtime not connected")
	}

	r.handlers[table] = append(r.handlers[table], handler)

	r.ref++
	msg := map[string]any{
		"topic":    "realtime:public:" + table,
		"event":    "phx_join",
		"payload":  map[string]any{},
		"ref":      fmt.Sprintf("%d", r.ref),
		"join_ref": fmt.Sprintf("%d", r.ref),
	}
	if err := r.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send join: %w", err)
	}
	return nil
}

func (r *RealtimeClient) readLoop() {
	for {
		select {
		case <-r.done:
			return
		default:
		}

		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		r.dispatch(message)
	}
}

// dispatch parses a Phoenix frame and fans the change out to the table's
// handlers. Non-change frames (joins, heartbeats) are ignored.
func (r *RealtimeClient) dispatch(message []byte) {
	frame := gjson.ParseBytes(message)

	topic := frame.Get("topic").String()
	if !strings.HasPrefix(topic, "realtime:public:") {
		return
	}

	event := frame.Get("payload.type").String()
	if event == "" {
		event = frame.Get("event").String()
	}
	switch event {
	case "INSERT", "UPDATE", "DELETE":
	default:
		return
	}

	table := frame.Get("payload.table").String()
	if table == "" {
		table = strings.TrimPrefix(topic, "realtime:public:")
	}

	change := TableChange{Table: table, Event: event}
	if rec := frame.Get("payload.record"); rec.Exists() {
		change.Record = []byte(rec.Raw)
	}

	r.mu.RLock()
	handlers := append([]ChangeHandler(nil), r.handlers[table]...)
	r.mu.RUnlock()

	for _, handler := range handlers {
		go handler(change)
	}
}

func (r *RealtimeClient) heartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.conn != nil {
				r.ref++
				msg := map[string]any{
					"topic":   "phoenix",
					"event":   "heartbeat",
					"payload": map[string]any{},
					"ref":     fmt.Sprintf("%d", r.ref),
				}
				_ = r.conn.WriteJSON(msg)
			}
			r.mu.Unlock()
		}
	}
}

package realtime

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", want, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub, srv := newTestHub(t)

	first := dial(t, srv)
	second := dial(t, srv)
	waitForClients(t, hub, 2)

	hub.Publish("planning:update", map[string]string{"2026-09-01": "maj"})

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read broadcast: %v", err)
		}
		if msg.Event != "planning:update" {
			t.Fatalf("unexpected event %q", msg.Event)
		}
	}
}

func TestHub_ConcurrentPublish(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	// 客户端持续读，避免写端因缓冲塞满而阻塞。
	received := make(chan struct{})
	go func() {
		defer close(received)
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
		}
	}()

	const publishers = 4
	const perPublisher = 200

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				hub.Publish("planning:update", map[string]int{"publisher": id, "seq": j})
			}
		}(i)
	}
	wg.Wait()

	// 连接必须在全部并发广播后仍然健康。
	if hub.ClientCount() != 1 {
		t.Fatalf("expected client to survive concurrent publishes, got %d", hub.ClientCount())
	}

	conn.Close()
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("reader did not stop after close")
	}
}

func TestHub_DisconnectedClientRemoved(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// 广播到空 hub 不应崩溃
	hub.Publish("events:updated", nil)
}

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antibyte/retrocpc/pkg/shared"
	"github.com/antibyte/retrocpc/pkg/storage"
)

func newTestServer(t *testing.T, store Store, setup ...func(*Server)) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(store)
	for _, fn := range setup {
		fn(srv)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Shutdown()
		ts.Close()
	})
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg shared.Message) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, what string, match func(shared.Message) bool) shared.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		var msg shared.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad message %q: %v", data, err)
		}
		if match(msg) {
			return msg
		}
	}
}

func ofType(typ shared.MessageType) func(shared.Message) bool {
	return func(m shared.Message) bool { return m.Type == typ }
}

func screenContains(text string) func(shared.Message) bool {
	return func(m shared.Message) bool {
		if m.Type != shared.MessageTypeScreen {
			return false
		}
		for _, l := range m.Lines {
			if strings.Contains(l, text) {
				return true
			}
		}
		return false
	}
}

func TestSessionGreeting(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	conn := dial(t, ts)

	msg := readUntil(t, conn, "session", ofType(shared.MessageTypeSession))
	if msg.SessionID == "" {
		t.Fatal("empty session id")
	}
	if srv.SessionCount() != 1 {
		t.Errorf("SessionCount = %d, want 1", srv.SessionCount())
	}
}

func TestTextIsPrinted(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	readUntil(t, conn, "session", ofType(shared.MessageTypeSession))

	send(t, conn, shared.Message{Type: shared.MessageTypeText, Content: "HELLO"})
	msg := readUntil(t, conn, "screen", screenContains("HELLO"))
	if msg.Lines[0] != "HELLO" {
		t.Errorf("first line = %q", msg.Lines[0])
	}
	if msg.Mode != 1 {
		t.Errorf("mode = %d, want 1", msg.Mode)
	}
}

func TestRunWithInput(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	readUntil(t, conn, "session", ofType(shared.MessageTypeSession))

	send(t, conn, shared.Message{Type: shared.MessageTypeRun, Content: "ask"})
	waiting := readUntil(t, conn, "waiting", ofType(shared.MessageTypeWaiting))
	if waiting.Content != "Your name? " {
		t.Errorf("prompt = %q", waiting.Content)
	}

	send(t, conn, shared.Message{Type: shared.MessageTypeInput, Content: "Bob"})
	stop := readUntil(t, conn, "stop", ofType(shared.MessageTypeStop))
	if stop.Stop != "end" {
		t.Errorf("stop = %q, want end", stop.Stop)
	}
	readUntil(t, conn, "greeting", screenContains("Hello, Bob!"))
}

func TestInputWithoutProgram(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	readUntil(t, conn, "session", ofType(shared.MessageTypeSession))

	send(t, conn, shared.Message{Type: shared.MessageTypeInput, Content: "x"})
	msg := readUntil(t, conn, "error", ofType(shared.MessageTypeError))
	if msg.Content != "no INPUT pending" {
		t.Errorf("error = %q", msg.Content)
	}
}

func TestUnknownProgram(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	readUntil(t, conn, "session", ofType(shared.MessageTypeSession))

	send(t, conn, shared.Message{Type: shared.MessageTypeRun, Content: "nope"})
	msg := readUntil(t, conn, "error", ofType(shared.MessageTypeError))
	if !strings.Contains(msg.Content, "nope") {
		t.Errorf("error = %q", msg.Content)
	}
}

func TestContWithoutStop(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	readUntil(t, conn, "session", ofType(shared.MessageTypeSession))

	send(t, conn, shared.Message{Type: shared.MessageTypeCont})
	msg := readUntil(t, conn, "fault", ofType(shared.MessageTypeFault))
	if msg.Code != 17 {
		t.Errorf("code = %d, want 17", msg.Code)
	}
}

func TestSnapshotRestore(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	_, ts := newTestServer(t, store)
	conn := dial(t, ts)
	readUntil(t, conn, "session", ofType(shared.MessageTypeSession))

	// MODE 0 via control code
	send(t, conn, shared.Message{Type: shared.MessageTypeText, Content: "\x04\x00"})
	readUntil(t, conn, "mode 0", func(m shared.Message) bool {
		return m.Type == shared.MessageTypeScreen && m.Mode == 0
	})

	send(t, conn, shared.Message{Type: shared.MessageTypeSnapshot, Label: "narrow"})
	snap := readUntil(t, conn, "snapshot", ofType(shared.MessageTypeSnapshot))
	if snap.ID == "" || snap.Label != "narrow" {
		t.Fatalf("snapshot reply = %+v", snap)
	}

	send(t, conn, shared.Message{Type: shared.MessageTypeReset})
	readUntil(t, conn, "mode 1", func(m shared.Message) bool {
		return m.Type == shared.MessageTypeScreen && m.Mode == 1
	})

	send(t, conn, shared.Message{Type: shared.MessageTypeRestore, ID: snap.ID})
	readUntil(t, conn, "restored mode", func(m shared.Message) bool {
		return m.Type == shared.MessageTypeScreen && m.Mode == 0
	})
}

func TestSnapshotWithoutStore(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	readUntil(t, conn, "session", ofType(shared.MessageTypeSession))

	send(t, conn, shared.Message{Type: shared.MessageTypeSnapshot, Label: "x"})
	msg := readUntil(t, conn, "error", ofType(shared.MessageTypeError))
	if msg.Content != "no store" {
		t.Errorf("error = %q", msg.Content)
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}

func TestMaxSessions(t *testing.T) {
	_, ts := newTestServer(t, nil, func(s *Server) { s.maxSessions = 1 })

	conn := dial(t, ts)
	readUntil(t, conn, "session", ofType(shared.MessageTypeSession))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("second session accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("response = %v, want 503", resp)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:8080", true},
		{"http://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestTokenSessions(t *testing.T) {
	_, ts := newTestServer(t, nil, func(s *Server) { s.requireToken = true })
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token: err=%v resp=%v, want 401", err, resp)
	}

	res, err := http.Post(ts.URL+"/api/session", "application/json", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	var created struct {
		SessionID string `json:"sessionId"`
		Token     string `json:"token"`
	}
	err = json.NewDecoder(res.Body).Decode(&created)
	res.Body.Close()
	if err != nil || created.Token == "" {
		t.Fatalf("session response %+v, %v", created, err)
	}

	header := http.Header{"Authorization": []string{"Bearer " + created.Token}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	defer conn.Close()
	msg := readUntil(t, conn, "session", ofType(shared.MessageTypeSession))
	if msg.SessionID != created.SessionID {
		t.Errorf("session id = %q, want %q", msg.SessionID, created.SessionID)
	}

	_, resp, err = websocket.DefaultDialer.Dial(url, header)
	if err == nil || resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("second dial: err=%v resp=%v, want 409", err, resp)
	}
}

package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/becomeliminal/recall/conversation"
	"github.com/becomeliminal/recall/gateway"
	"github.com/becomeliminal/recall/provider"
	"github.com/becomeliminal/recall/provider/embedder/mock"
	"github.com/becomeliminal/recall/session"
)

type memStore struct {
	snapshot []byte
}

func (m *memStore) Load(ctx context.Context) (*conversation.Conversation, error) {
	if m.snapshot == nil {
		return conversation.New(), nil
	}
	return conversation.DecodeSnapshot(m.snapshot)
}

func (m *memStore) Save(ctx context.Context, conv *conversation.Conversation) error {
	data, err := conversation.EncodeSnapshot(conv)
	if err != nil {
		return err
	}
	m.snapshot = data
	return nil
}

func (m *memStore) Close() error { return nil }

// echoCompleter answers every prompt with a fixed reply and skips the
// note pass by erroring on it.
type echoCompleter struct {
	reply string
	calls int
}

func (e *echoCompleter) Complete(ctx context.Context, prompt string, opts provider.Options) (string, error) {
	e.calls++
	if e.calls%2 == 0 {
		return "", errors.New("no notes")
	}
	return e.reply, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := session.New(context.Background(), mock.New(16), &echoCompleter{reply: "hi!"}, &memStore{},
		session.WithConfig(&session.Config{
			Retry: provider.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond},
		}))
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}

	srv := httptest.NewServer(gateway.New(s).Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestTurnEndpoint(t *testing.T) {
	srv := newTestServer(t)

	payload := []byte(`{"message": "Hello"}`)
	resp, err := http.Post(srv.URL+"/api/v1/turn", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /api/v1/turn failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var turn gateway.TurnResponse
	if err := json.NewDecoder(resp.Body).Decode(&turn); err != nil {
		t.Fatalf("decoding turn body: %v", err)
	}
	if turn.Response != "hi!" {
		t.Errorf("Response = %q, want %q", turn.Response, "hi!")
	}
}

func TestTurnEndpointRejectsEmptyBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/turn", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /api/v1/turn failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

// Turns mutate the conversation under the write lock; health and notes
// reads must hold the read lock so this mix is race-free under -race.
func TestReadEndpointsDuringConcurrentTurns(t *testing.T) {
	srv := newTestServer(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			resp, err := http.Post(srv.URL+"/api/v1/turn", "application/json",
				strings.NewReader(`{"message": "Hello"}`))
			if err != nil {
				t.Errorf("POST /api/v1/turn failed: %v", err)
				return
			}
			resp.Body.Close()
		}()
		go func() {
			defer wg.Done()
			for _, path := range []string{"/health", "/api/v1/notes"} {
				resp, err := http.Get(srv.URL + path)
				if err != nil {
					t.Errorf("GET %s failed: %v", path, err)
					return
				}
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if got := body["messages"].(float64); got != 20 {
		t.Errorf("messages = %v, want 20 after 10 turns", got)
	}
}

func TestWebsocketTurn(t *testing.T) {
	srv := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("Hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var turn gateway.TurnResponse
	if err := conn.ReadJSON(&turn); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if turn.Response != "hi!" {
		t.Errorf("Response = %q, want %q", turn.Response, "hi!")
	}
}

package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"exit-readiness-service/internal/app"
	"exit-readiness-service/internal/domain"
	"exit-readiness-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestWebSocketSubmitFlow(t *testing.T) {
	pipeline := &stubPipeline{
		result: domain.SubmissionResult{SubmissionID: "sub-1", Success: true, ContactID: "42", Warnings: []string{}},
		events: []app.Event{
			{SubmissionID: "sub-1", State: app.StateValidating, Outcome: app.OutcomeOK},
			{SubmissionID: "sub-1", State: app.StateCompleted, Outcome: app.OutcomeOK},
		},
	}
	h := newTestHandler(pipeline, memory.NewBlobStore(), nil)
	server := httptest.NewServer(NewRouter(h, NewWSHandler(h)))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/submit"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	submit := map[string]any{
		"type": "submit",
		"payload": map[string]any{
			"email":        "ceo@example.com",
			"overallScore": 80,
		},
	}
	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write submit: %v", err)
	}

	_, first := readNext(conn, t, "state")
	if first["state"] != string(app.StateValidating) {
		t.Fatalf("expected validating first, got %v", first)
	}
	readNext(conn, t, "state")
	_, result := readNext(conn, t, "result")
	if result["status"] != float64(200) {
		t.Fatalf("expected status 200, got %v", result)
	}
	body := result["result"].(map[string]any)
	if body["success"] != true || body["contactId"] != "42" {
		t.Fatalf("unexpected result %v", body)
	}
	if got := pipeline.last(t).Email; got != "ceo@example.com" {
		t.Fatalf("unexpected email %q", got)
	}
}

func TestWebSocketRejectsUnknownMessage(t *testing.T) {
	h := newTestHandler(&stubPipeline{}, memory.NewBlobStore(), nil)
	server := httptest.NewServer(NewRouter(h, NewWSHandler(h)))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"/ws/submit", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "answer"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readNext(conn, t, "error")
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

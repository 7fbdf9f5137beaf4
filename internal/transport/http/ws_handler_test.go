package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

type wsFixture struct {
	store   *memory.Store
	service *app.AssessmentService
	server  *httptest.Server
}

func newFixture(t *testing.T) *wsFixture {
	t.Helper()
	store := memory.NewStore()
	store.PutContent(sampleContent())
	store.PutSession(domain.Session{ID: "s1", UserID: "u1", AssessmentID: "a1"})

	repos := app.Repositories{
		Sessions:    store,
		Content:     memory.NewContentCache(store, time.Minute),
		Answers:     store,
		Submissions: store,
	}
	service := app.NewAssessmentService(repos, memory.NewAttemptRegistry(), app.Options{})
	server := httptest.NewServer(NewRouter(NewWSHandler(service, nil), nil, nil))
	t.Cleanup(func() {
		server.Close()
		service.Close("s1")
	})
	return &wsFixture{store: store, service: service, server: server}
}

func (f *wsFixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + f.server.URL[len("http"):] + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketAnswerFlow(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "sessionId=s1&userId=u1")

	var snap domain.Snapshot
	readUntil(t, conn, "snapshot", &snap)
	if snap.State != domain.StateInProgress || snap.Total != 3 || snap.QuestionID != "q1" {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	send(t, conn, "answer", map[string]any{"choice": 1})
	readUntil(t, conn, "snapshot", &snap)
	if snap.Answered != 1 || !snap.Answers["q1"].Equal(domain.ChoiceAnswer(1)) {
		t.Fatalf("expected q1 answered, got %+v", snap)
	}

	send(t, conn, "navigate", map[string]any{"move": "next"})
	readUntil(t, conn, "snapshot", &snap)
	if snap.Index != 1 || snap.QuestionID != "q2" {
		t.Fatalf("expected second question, got index=%d question=%s", snap.Index, snap.QuestionID)
	}
}

func TestWebSocketSubmitRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "sessionId=s1&userId=u1")
	readUntil(t, conn, "snapshot", nil)

	send(t, conn, "answer", map[string]any{"questionId": "q1", "choice": 1})
	readUntil(t, conn, "snapshot", nil)

	send(t, conn, "submit", map[string]any{})
	var warning warningPayload
	readUntil(t, conn, "warning", &warning)
	if warning.Answered != 1 || warning.Total != 3 {
		t.Fatalf("unexpected warning: %+v", warning)
	}

	send(t, conn, "submit", map[string]any{"confirm": true})
	var ev domain.Event
	readUntil(t, conn, "submitted", &ev)
	if ev.Submission == nil || ev.Submission.Reason != domain.ReasonManual {
		t.Fatalf("expected manual submission, got %+v", ev)
	}
	if f.store.SubmissionCount() != 1 {
		t.Fatalf("expected one submission, got %d", f.store.SubmissionCount())
	}

	send(t, conn, "answer", map[string]any{"questionId": "q2", "choice": 2})
	var errMsg errorPayload
	readUntil(t, conn, "error", &errMsg)
	if errMsg.Message != domain.ErrAlreadySubmitted.Error() {
		t.Fatalf("expected already submitted error, got %q", errMsg.Message)
	}
}

func TestWebSocketRejectsInvalidPayload(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "sessionId=s1&userId=u1")
	readUntil(t, conn, "snapshot", nil)

	send(t, conn, "answer", map[string]any{"choice": 9})
	var errMsg errorPayload
	readUntil(t, conn, "error", &errMsg)
	if errMsg.Message != "invalid answer payload" {
		t.Fatalf("unexpected error message %q", errMsg.Message)
	}

	send(t, conn, "navigate", map[string]any{"move": "sideways"})
	readUntil(t, conn, "error", &errMsg)
	if errMsg.Message != "invalid navigate payload" {
		t.Fatalf("unexpected error message %q", errMsg.Message)
	}
}

func TestWebSocketRejectsOtherUser(t *testing.T) {
	f := newFixture(t)
	u := "ws" + f.server.URL[len("http"):] + "/ws?sessionId=s1&userId=intruder"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

func TestWebSocketRequiresSessionID(t *testing.T) {
	f := newFixture(t)
	u := "ws" + f.server.URL[len("http"):] + "/ws?userId=u1"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips tick and state traffic until a message of the expected type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, expect string, dst any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read waiting for %s: %v", expect, err)
		}
		if msg.Type != expect {
			continue
		}
		if dst != nil {
			if err := json.Unmarshal(msg.Payload, dst); err != nil {
				t.Fatalf("decode %s: %v", expect, err)
			}
		}
		return
	}
}

func sampleContent() domain.Content {
	one, two := 1, 2
	return domain.Content{
		Assessment: domain.Assessment{ID: "a1", Title: "Basics", Kind: "quiz", AutoGradable: true},
		Questions: []domain.Question{
			{ID: "q1", Prompt: "2 + 2?", Choices: []string{"4", "5"}, CorrectChoice: &one, Position: 1},
			{ID: "q2", Prompt: "3 + 3?", Choices: []string{"5", "6"}, CorrectChoice: &two, Position: 2},
			{ID: "q3", Prompt: "Explain addition.", Position: 3},
		},
	}
}

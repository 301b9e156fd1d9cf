package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ihkcoach/ihkcoach/internal/chat"
	"github.com/ihkcoach/ihkcoach/internal/generator"
	"github.com/ihkcoach/ihkcoach/internal/i18n"
	"github.com/ihkcoach/ihkcoach/internal/llm"
	"github.com/ihkcoach/ihkcoach/internal/llm/prompts"
	"github.com/ihkcoach/ihkcoach/internal/model"
	"github.com/ihkcoach/ihkcoach/internal/store"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, _ []model.Turn, _ llm.Options) (model.Turn, error) {
	if f.err != nil {
		return model.Turn{}, f.err
	}
	return model.AssistantTurn(f.reply), nil
}

// newTestServer seeds the §8-style fixture: question 1 with correct
// answer 2, question 2 with correct answer 1.
func newTestServer(t *testing.T, completer chat.Completer) (*httptest.Server, *store.Store) {
	t.Helper()

	if err := i18n.Init("de"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	if err := prompts.Load(prompts.FS); err != nil {
		t.Fatalf("prompts.Load: %v", err)
	}

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	seed := []model.Question{
		{
			Question:      "Welche Aussage zur Lebensversicherung ist korrekt?",
			Options:       []string{"Nur Unfalltod", "Immer Sparkomponente", "Todesfallschutz mit Sparvorgang"},
			CorrectAnswer: 2,
		},
		{
			Question:      "Merkmal der gesetzlichen Krankenversicherung?",
			Options:       []string{"Nur Arbeitnehmer", "Solidaritätsprinzip", "Keine Familienversicherung"},
			CorrectAnswer: 1,
		},
	}
	for _, q := range seed {
		if _, err := s.InsertQuestion(q); err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}

	cfg := model.ServerConfig{
		Lang:          "de",
		PromptVariant: string(prompts.VariantStandard),
		Temperature:   0.7,
		MaxTokens:     500,
	}
	h := New(s, chat.New(completer, cfg), generator.New(completer), cfg)

	r := chi.NewRouter()
	r.Use(i18n.Middleware("de"))
	h.Routes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, s
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestListQuestions(t *testing.T) {
	ts, _ := newTestServer(t, &fakeCompleter{})

	resp, err := http.Get(ts.URL + "/api/questions")
	if err != nil {
		t.Fatalf("GET /api/questions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var questions []model.Question
	decodeBody(t, resp, &questions)
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].ID != 1 || questions[1].ID != 2 {
		t.Errorf("questions out of order: %d, %d", questions[0].ID, questions[1].ID)
	}
	// correctAnswer stays client-visible.
	if questions[0].CorrectAnswer != 2 {
		t.Errorf("correctAnswer = %d, want 2", questions[0].CorrectAnswer)
	}
}

func TestEvaluate(t *testing.T) {
	ts, s := newTestServer(t, &fakeCompleter{})

	t.Run("correct answer", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/evaluate", map[string]any{"questionId": 1, "answer": 2})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var result model.EvaluationResult
		decodeBody(t, resp, &result)
		if !result.Correct {
			t.Error("expected correct=true")
		}
		if !strings.HasPrefix(result.Feedback, "Richtig!") {
			t.Errorf("feedback = %q", result.Feedback)
		}
	})

	t.Run("incorrect answer discloses correct option", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/evaluate", map[string]any{"questionId": 1, "answer": 0})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var result model.EvaluationResult
		decodeBody(t, resp, &result)
		if result.Correct {
			t.Error("expected correct=false")
		}
		if !strings.Contains(result.Feedback, "Todesfallschutz mit Sparvorgang") {
			t.Errorf("feedback should contain the correct option, got %q", result.Feedback)
		}
	})

	t.Run("unknown question id", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/evaluate", map[string]any{"questionId": 99, "answer": 0})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
		var body struct {
			Error string `json:"error"`
		}
		decodeBody(t, resp, &body)
		if body.Error == "" {
			t.Error("expected error payload")
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/evaluate", "application/json", strings.NewReader("not json"))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("attempts are recorded", func(t *testing.T) {
		stats, err := s.AttemptStats()
		if err != nil {
			t.Fatalf("AttemptStats: %v", err)
		}
		if len(stats) == 0 || stats[0].Attempts != 2 || stats[0].Correct != 1 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})
}

func TestChat(t *testing.T) {
	ts, _ := newTestServer(t, &fakeCompleter{reply: "Hi"})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{
		"message": "Hallo",
		"context": []model.Turn{},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body chatResponse
	decodeBody(t, resp, &body)
	if body.Response != "Hi" {
		t.Errorf("response = %q, want Hi", body.Response)
	}
	want := []model.Turn{model.UserTurn("Hallo"), model.AssistantTurn("Hi")}
	if len(body.Context) != 2 || body.Context[0] != want[0] || body.Context[1] != want[1] {
		t.Errorf("context = %+v, want %+v", body.Context, want)
	}
}

func TestChatContextOptional(t *testing.T) {
	ts, _ := newTestServer(t, &fakeCompleter{reply: "Hi"})

	// context omitted entirely defaults to the empty sequence.
	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{"message": "Hallo"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body chatResponse
	decodeBody(t, resp, &body)
	if len(body.Context) != 2 {
		t.Errorf("expected 2 turns, got %d", len(body.Context))
	}
}

func TestChatRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t, &fakeCompleter{reply: "Antwort"})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{"message": "Frage 1"})
	var first chatResponse
	decodeBody(t, resp, &first)

	resp = postJSON(t, ts.URL+"/api/chat", map[string]any{
		"message": "Frage 2",
		"context": first.Context,
	})
	var second chatResponse
	decodeBody(t, resp, &second)

	if len(second.Context) != len(first.Context)+2 {
		t.Fatalf("context should grow by 2, got %d -> %d", len(first.Context), len(second.Context))
	}
	for i, turn := range first.Context {
		if second.Context[i] != turn {
			t.Errorf("previous context must reappear verbatim as prefix, turn %d differs", i)
		}
	}
}

func TestChatFailure(t *testing.T) {
	ts, _ := newTestServer(t, &fakeCompleter{err: errors.New("provider down")})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{"message": "Hallo"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	var body map[string]json.RawMessage
	decodeBody(t, resp, &body)

	var msg string
	if err := json.Unmarshal(body["error"], &msg); err != nil {
		t.Fatalf("error field: %v", err)
	}
	if msg != "Fehler bei der Verarbeitung der Anfrage" {
		t.Errorf("error = %q, want fixed apology", msg)
	}
	if _, ok := body["context"]; ok {
		t.Error("failure payload must not echo any context")
	}
}

func TestChatRejectsSystemTurn(t *testing.T) {
	ts, _ := newTestServer(t, &fakeCompleter{reply: "Hi"})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{
		"message": "Hallo",
		"context": []model.Turn{model.SystemTurn("smuggled")},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateQuestion(t *testing.T) {
	reply := `{
		"question": "Was deckt die Haftpflichtversicherung?",
		"options": ["Eigene Schäden", "Schäden Dritter", "Nur Autoschäden", "Nichts"],
		"correctAnswer": 1,
		"explanation": "Sie deckt Schäden Dritter."
	}`
	ts, _ := newTestServer(t, &fakeCompleter{reply: reply})

	resp := postJSON(t, ts.URL+"/api/generate-question", map[string]any{"topic": "Haftpflichtversicherung"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var q model.GeneratedQuestion
	decodeBody(t, resp, &q)
	if q.Question == "" || len(q.Options) != 4 || q.CorrectAnswer != 1 || q.Explanation == "" {
		t.Errorf("unexpected question: %+v", q)
	}
}

func TestGenerateQuestionMalformed(t *testing.T) {
	ts, _ := newTestServer(t, &fakeCompleter{reply: "keine JSON-Antwort"})

	resp := postJSON(t, ts.URL+"/api/generate-question", map[string]any{"topic": "Thema"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &body)
	if body.Error != "Fehler bei der Fragengenerierung" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestGenerateQuestionEmptyTopic(t *testing.T) {
	ts, _ := newTestServer(t, &fakeCompleter{})

	resp := postJSON(t, ts.URL+"/api/generate-question", map[string]any{"topic": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, &fakeCompleter{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

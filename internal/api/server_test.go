package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/terra-clan/studyhub/internal/catalog"
	"github.com/terra-clan/studyhub/internal/config"
	"github.com/terra-clan/studyhub/internal/datasource"
	"github.com/terra-clan/studyhub/internal/kv"
	"github.com/terra-clan/studyhub/internal/models"
	"github.com/terra-clan/studyhub/internal/notify"
	"github.com/terra-clan/studyhub/internal/progress"
	"github.com/terra-clan/studyhub/internal/quiz"
	"github.com/terra-clan/studyhub/internal/render"
)

const testResources = `[
	{"name":"Alpha Notes","path":"data/resources/pdfs/alpha.pdf","tags":["stats"],"description":"Intro to statistics"},
	{"name":"Beta Chart","path":"data/resources/images/beta.png"},
	{"name":"Gamma Sheet","path":"data/resources/sheets/gamma.xlsx"}
]`

const testQuiz = `[
	{"question":"Which step comes first in Data Analytics?","options":["Data Cleaning","Data Collection","Modeling"],"answer":"Data Collection"},
	{"q":"Which chart is best for trends over time?","options":["Bar","Pie","Line"],"a":"Line"}
]`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type testEnv struct {
	server   *Server
	registry *progress.Registry
}

func newTestEnv(t *testing.T, perMinute int) *testEnv {
	t.Helper()
	dir := t.TempDir()
	resources := filepath.Join(dir, "resources.json")
	quizFile := filepath.Join(dir, "quiz.json")
	if err := os.WriteFile(resources, []byte(testResources), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(quizFile, []byte(testQuiz), 0o644); err != nil {
		t.Fatal(err)
	}

	renderer := render.New()
	snapshot := render.NewSnapshot(renderer)
	view := catalog.NewView(datasource.New(resources, nil), snapshot)
	if err := view.Load(context.Background()); err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	hub := notify.NewHub()
	registry := progress.NewRegistry(kv.NewMemory(), hub)
	sessions := quiz.NewSessions(quiz.NewLoader(datasource.New(quizFile, nil)), time.Minute)

	cfg := &config.Config{
		Server:    config.ServerConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{PerMinute: perMinute},
		Data:      config.DataConfig{SiteDir: dir},
	}

	return &testEnv{
		server: NewServer(cfg, Dependencies{
			Catalog:  view,
			Progress: registry,
			Quizzes:  sessions,
			Renderer: renderer,
			Snapshot: snapshot,
			Hub:      hub,
		}),
		registry: registry,
	}
}

func (e *testEnv) do(t *testing.T, method, target, learner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if learner != "" {
		req.Header.Set(LearnerHeader, learner)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if v != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, v); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, 0)

	if rec := env.do(t, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/ready", "", "")
	var data map[string]string
	decode(t, rec, &data)
	if rec.Code != http.StatusOK || data["catalog"] != "ok" {
		t.Fatalf("ready: %d %v", rec.Code, data)
	}
}

func TestLearnerIdentity(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/progress", "", "")
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != LearnerCookie || cookies[0].Value == "" {
		t.Fatalf("expected a minted learner cookie, got %v", cookies)
	}
	if rec.Header().Get(LearnerHeader) != cookies[0].Value {
		t.Fatal("header and cookie disagree")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress", nil)
	req.AddCookie(&http.Cookie{Name: LearnerCookie, Value: "from-cookie"})
	rec = httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	var resp models.ProgressResponse
	decode(t, rec, &resp)
	if resp.LearnerID != "from-cookie" || len(rec.Result().Cookies()) != 0 {
		t.Fatalf("cookie not honored: %+v", resp)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/progress", "bad id!", "")
	if rec.Header().Get(LearnerHeader) == "bad id!" {
		t.Fatal("invalid header accepted")
	}
}

func TestRecordEventsUnlockBadges(t *testing.T) {
	env := newTestEnv(t, 0)

	var last models.RecordResponse
	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/progress/topics", "alice", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("record: %d %s", rec.Code, rec.Body.String())
		}
		decode(t, rec, &last)
	}
	if last.Counters[models.EventTopics] != 3 || len(last.Unlocked) != 1 || last.Unlocked[0].Name != "Data Enthusiast" {
		t.Fatalf("unexpected record response %+v", last)
	}

	var progressResp models.ProgressResponse
	decode(t, env.do(t, http.MethodGet, "/api/v1/progress", "alice", ""), &progressResp)
	if len(progressResp.Badges) != 2 || progressResp.Badges[0].Name != "First Reader" {
		t.Fatalf("unexpected badges %+v", progressResp.Badges)
	}

	var other models.ProgressResponse
	decode(t, env.do(t, http.MethodGet, "/api/v1/progress", "bob", ""), &other)
	if len(other.Badges) != 0 {
		t.Fatal("progress leaked between learners")
	}
}

func TestRecordUnknownEvent(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/progress/videos", "alice", "")
	res := decode(t, rec, nil)
	if rec.Code != http.StatusBadRequest || res.Error == nil || res.Error.Code != "unknown_event" {
		t.Fatalf("expected unknown_event, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	var list models.CatalogResponse
	decode(t, env.do(t, http.MethodGet, "/api/v1/catalog?q=STATS", "", ""), &list)
	if list.Total != 1 || list.Resources[0].Name != "Alpha Notes" || list.Stats != "3 resources" || list.Query != "stats" {
		t.Fatalf("unexpected catalog response %+v", list)
	}

	var featured struct {
		Resources []models.ResourceEntry `json:"resources"`
	}
	decode(t, env.do(t, http.MethodGet, "/api/v1/catalog/featured", "", ""), &featured)
	if len(featured.Resources) != 3 {
		t.Fatalf("expected 3 featured, got %d", len(featured.Resources))
	}

	var preview models.Preview
	decode(t, env.do(t, http.MethodGet, "/api/v1/catalog/preview?path=a/b.JPG", "", ""), &preview)
	if preview.Kind != models.PreviewImage {
		t.Fatalf("unexpected preview %+v", preview)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/catalog/preview", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without path, got %d", rec.Code)
	}
}

func TestQuizFlow(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/quiz", "alice", "")
	var state models.QuizState
	decode(t, rec, &state)
	if rec.Code != http.StatusCreated || state.ID == "" || state.Total != 2 || state.Status != models.QuizAsking {
		t.Fatalf("unexpected start %d %+v", rec.Code, state)
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/quiz/"+state.ID, "bob", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign learner saw quiz: %d", rec.Code)
	}

	answer := "/api/v1/quiz/" + state.ID + "/answer"
	var resp models.AnswerResponse
	decode(t, env.do(t, http.MethodPost, answer, "alice", `{"choice":"Data Collection"}`), &resp)
	if !resp.Correct {
		t.Fatalf("expected correct answer, got %+v", resp)
	}
	decode(t, env.do(t, http.MethodPost, answer, "alice", `{"index":2}`), &resp)
	if resp.State.Status != models.QuizCompleted || resp.State.Score != 2 {
		t.Fatalf("expected 2/2 completion, got %+v", resp.State)
	}

	rec = env.do(t, http.MethodPost, answer, "alice", `{"choice":"Line"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 after completion, got %d", rec.Code)
	}

	store, err := env.registry.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get store: %v", err)
	}
	if store.Counters()[models.EventQuizzes] != 1 {
		t.Fatalf("expected one quizzes record, got %v", store.Counters())
	}
	if badges := store.Badges(); len(badges) != 1 || badges[0].Name != "Quiz Starter" {
		t.Fatalf("expected Quiz Starter, got %+v", badges)
	}
}

func TestAnswerValidation(t *testing.T) {
	env := newTestEnv(t, 0)

	var state models.QuizState
	decode(t, env.do(t, http.MethodPost, "/api/v1/quiz", "alice", ""), &state)
	answer := "/api/v1/quiz/" + state.ID + "/answer"

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{`, http.StatusBadRequest},
		{"empty", `{}`, http.StatusBadRequest},
		{"index out of range", `{"index":9}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, http.MethodPost, answer, "alice", tt.body); rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
		})
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/quiz/missing/answer", "alice", `{"choice":"x"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestIndexAndFragments(t *testing.T) {
	env := newTestEnv(t, 0)
	env.do(t, http.MethodPost, "/api/v1/progress/topics", "alice", "")

	rec := env.do(t, http.MethodGet, "/", "alice", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("index: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Find("#resource-grid article.card").Length() != 3 {
		t.Fatal("expected 3 cards on the index page")
	}
	if doc.Find("#stats").Text() != "3 resources" {
		t.Fatalf("unexpected stats %q", doc.Find("#stats").Text())
	}
	if doc.Find("#badges li.badge").Length() != 1 {
		t.Fatal("expected First Reader on the index page")
	}

	rec = env.do(t, http.MethodGet, "/fragments/grid?q=chart", "alice", "")
	doc, _ = goquery.NewDocumentFromReader(rec.Body)
	if names := doc.Find("h3.name"); names.Length() != 1 || names.Text() != "Beta Chart" {
		t.Fatalf("unexpected grid fragment %q", names.Text())
	}

	rec = env.do(t, http.MethodGet, "/fragments/grid?q=zzz", "alice", "")
	doc, _ = goquery.NewDocumentFromReader(rec.Body)
	if doc.Find("p.placeholder").Text() != catalog.EmptyPlaceholder {
		t.Fatal("expected placeholder for empty search")
	}

	rec = env.do(t, http.MethodGet, "/fragments/preview?path=data/resources/pdfs/alpha.pdf", "alice", "")
	doc, _ = goquery.NewDocumentFromReader(rec.Body)
	if doc.Find("#preview iframe").Length() != 1 {
		t.Fatal("expected pdf iframe")
	}
}

func TestQuizFragments(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/fragments/quiz", "alice", "")
	doc, _ := goquery.NewDocumentFromReader(rec.Body)
	id, ok := doc.Find("#quiz").Attr("data-quiz")
	if rec.Code != http.StatusCreated || !ok || id == "" {
		t.Fatalf("unexpected quiz fragment %d", rec.Code)
	}
	if doc.Find("button.option").Length() != 3 {
		t.Fatal("expected option buttons")
	}

	env.do(t, http.MethodPost, "/fragments/quiz/"+id+"/answer", "alice", `{"index":0}`)
	rec = env.do(t, http.MethodPost, "/fragments/quiz/"+id+"/answer", "alice", `{"index":2}`)
	doc, _ = goquery.NewDocumentFromReader(rec.Body)
	if doc.Find(".score").Text() != "Score 1/2" {
		t.Fatalf("unexpected completion %q", doc.Find("#quiz").Text())
	}
}

func TestWriteRateLimit(t *testing.T) {
	env := newTestEnv(t, 1)

	if rec := env.do(t, http.MethodPost, "/api/v1/progress/topics", "alice", ""); rec.Code != http.StatusOK {
		t.Fatalf("first write: %d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/v1/progress/topics", "alice", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	// Reads are not limited
	if rec := env.do(t, http.MethodGet, "/api/v1/progress", "alice", ""); rec.Code != http.StatusOK {
		t.Fatalf("read limited: %d", rec.Code)
	}
}

func TestServesResourceFiles(t *testing.T) {
	env := newTestEnv(t, 0)
	dir := env.server.siteDir
	if err := os.MkdirAll(filepath.Join(dir, "data", "resources", "misc"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data", "resources", "misc", "note.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodGet, "/data/resources/misc/note.txt", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Fatalf("unexpected file response %d %q", rec.Code, rec.Body.String())
	}
}

func TestCORSPolicy(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		wantAllowed bool
		wantCreds   string
	}{
		{"same origin only by default", nil, false, ""},
		{"wildcard without credentials", []string{"*"}, true, ""},
		{"listed origin with credentials", []string{"https://app.example"}, true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&config.Config{Server: config.ServerConfig{AllowedOrigins: tt.origins}}, Dependencies{})

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", "https://app.example")
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			allowed := rec.Header().Get("Access-Control-Allow-Origin") != ""
			if allowed != tt.wantAllowed {
				t.Fatalf("expected allowed=%v, got headers %v", tt.wantAllowed, rec.Header())
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Fatalf("expected credentials %q, got %q", tt.wantCreds, got)
			}
		})
	}
}

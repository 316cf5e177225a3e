package client

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/terra-clan/studyhub/internal/api"
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

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	resources := filepath.Join(dir, "resources.json")
	quizFile := filepath.Join(dir, "quiz.yaml")
	if err := os.WriteFile(resources, []byte(`[
		{"name":"Alpha Notes","path":"data/resources/pdfs/alpha.pdf","tags":["stats"]},
		{"name":"Beta Chart","path":"data/resources/images/beta.png"}
	]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(quizFile, []byte("- question: Pick one\n  options: [yes, no]\n  answer: \"yes\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	renderer := render.New()
	snapshot := render.NewSnapshot(renderer)
	view := catalog.NewView(datasource.New(resources, nil), snapshot)
	if err := view.Load(context.Background()); err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	hub := notify.NewHub()

	srv := api.NewServer(&config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"*"}},
		Data:   config.DataConfig{SiteDir: dir},
	}, api.Dependencies{
		Catalog:  view,
		Progress: progress.NewRegistry(kv.NewMemory(), hub),
		Quizzes:  quiz.NewSessions(quiz.NewLoader(datasource.New(quizFile, nil)), time.Minute),
		Renderer: renderer,
		Snapshot: snapshot,
		Hub:      hub,
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientAdoptsServerAssignedLearner(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL, "", WithTimeout(5*time.Second))

	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if c.LearnerID() != "" {
		t.Fatal("health should not assign a learner")
	}

	if _, err := c.Progress(context.Background()); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if c.LearnerID() == "" {
		t.Fatal("expected the server-assigned learner id")
	}
}

func TestClientCatalogAndPreview(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL, "learner-1")
	ctx := context.Background()

	all, err := c.Catalog(ctx, "")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if all.Total != 2 || all.Stats != "2 resources" {
		t.Fatalf("unexpected catalog %+v", all)
	}

	filtered, err := c.Catalog(ctx, "STATS")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if filtered.Total != 1 || filtered.Resources[0].Name != "Alpha Notes" {
		t.Fatalf("unexpected search result %+v", filtered)
	}

	preview, err := c.Preview(ctx, "data/resources/images/beta.png")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Kind != models.PreviewImage {
		t.Fatalf("unexpected preview %+v", preview)
	}
}

func TestClientRecordAndQuiz(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL, "learner-2")
	ctx := context.Background()

	rec, err := c.Record(ctx, models.EventTopics)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(rec.Unlocked) != 1 || rec.Unlocked[0].Name != "First Reader" {
		t.Fatalf("unexpected unlocks %+v", rec.Unlocked)
	}

	state, err := c.StartQuiz(ctx)
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if state.Total != 1 || state.Question != "Pick one" {
		t.Fatalf("unexpected quiz %+v", state)
	}

	resp, err := c.Answer(ctx, state.ID, models.AnswerRequest{Choice: "yes"})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !resp.Correct || resp.State.Status != models.QuizCompleted {
		t.Fatalf("unexpected answer response %+v", resp)
	}

	p, err := c.Progress(ctx)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Counters[models.EventQuizzes] != 1 || len(p.Badges) != 2 {
		t.Fatalf("unexpected progress %+v", p)
	}
}

func TestClientErrors(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL, "learner-3")
	ctx := context.Background()

	if _, err := c.Record(ctx, "napping"); err == nil {
		t.Fatal("expected unknown event error")
	} else if apiErr, ok := err.(*APIError); !ok || apiErr.Code != "unknown_event" {
		t.Fatalf("unexpected error %v", err)
	}

	if _, err := c.Quiz(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

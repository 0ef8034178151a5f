package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"PaperDigest/internal/domain"
)

func TestSendDigestPostsMarkdown(t *testing.T) {
	var forms []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		forms = append(forms, r.Form.Get("text"))
		if got := r.Form.Get("chat_id"); got != "42" {
			t.Errorf("chat_id = %q, want 42", got)
		}
		if got := r.Form.Get("parse_mode"); got != "Markdown" {
			t.Errorf("parse_mode = %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	notifier := NewNotifier("token", "42", nil)
	notifier.endpoint = server.URL

	papers := []domain.Paper{
		{
			ArxivID:     "2503.00001",
			Title:       "Attention study",
			ArxivURL:    "https://arxiv.org/abs/2503.00001",
			MirrorURL:   "https://papers.cool/arxiv/2503.00001",
			PrimaryArea: "text_models",
			TLDR:        "short summary",
		},
	}
	if err := notifier.SendDigest(context.Background(), papers); err != nil {
		t.Fatalf("SendDigest: %v", err)
	}

	if len(forms) != 1 {
		t.Fatalf("expected 1 message, got %d", len(forms))
	}
	text := forms[0]
	if !strings.Contains(text, "[Attention study](https://papers.cool/arxiv/2503.00001)") {
		t.Fatalf("digest missing linked title: %s", text)
	}
	if !strings.Contains(text, "TL;DR: short summary") {
		t.Fatalf("digest missing tldr: %s", text)
	}
}

func TestSendDigestSplitsLongDigest(t *testing.T) {
	var count int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	notifier := NewNotifier("token", "42", nil)
	notifier.endpoint = server.URL

	long := strings.Repeat("x", 900)
	var papers []domain.Paper
	for range 10 {
		papers = append(papers, domain.Paper{Title: "paper", TLDR: long})
	}
	if err := notifier.SendDigest(context.Background(), papers); err != nil {
		t.Fatalf("SendDigest: %v", err)
	}
	if count < 2 {
		t.Fatalf("expected the digest to split into multiple messages, got %d", count)
	}
}

func TestSendDigestExcludeTags(t *testing.T) {
	var texts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		texts = append(texts, r.Form.Get("text"))
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	notifier := NewNotifier("token", "42", []string{"vla_models"})
	notifier.endpoint = server.URL

	papers := []domain.Paper{
		{Title: "kept paper", PrimaryArea: "text_models"},
		{Title: "dropped paper", PrimaryArea: "vla_models"},
	}
	if err := notifier.SendDigest(context.Background(), papers); err != nil {
		t.Fatalf("SendDigest: %v", err)
	}

	joined := strings.Join(texts, "\n")
	if strings.Contains(joined, "dropped paper") {
		t.Fatalf("excluded paper leaked: %s", joined)
	}
	if !strings.Contains(joined, "kept paper") {
		t.Fatalf("kept paper missing: %s", joined)
	}
}

func TestSendDigestMisconfigured(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier("", "", nil)
	if err := notifier.SendDigest(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestSendDigestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	notifier := NewNotifier("token", "42", nil)
	notifier.endpoint = server.URL

	err := notifier.SendDigest(context.Background(), []domain.Paper{{Title: "p"}})
	if err == nil {
		t.Fatal("expected error for http failure")
	}
}

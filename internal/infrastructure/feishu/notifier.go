package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

var emojiByPrimaryArea = map[string]string{
	"text_models":       "📝",
	"multimodal_models": "🖼️",
	"audio_models":      "🎧",
	"video_models":      "🎬",
	"vla_models":        "🤖",
	"diffusion_models":  "🌫️",
	"uncategorised":     "📌",
}

// Notifier sends digests to a Feishu group chat through an incoming
// webhook, one rich-text post per taxonomy cluster plus a leading summary.
type Notifier struct {
	webhookURL  string
	delay       time.Duration
	excludeTags []string
	client      *http.Client
	sleep       func(ctx context.Context, d time.Duration) error
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the webhook endpoint. delay spaces out consecutive
// posts so the chat renders them in order; excludeTags drops papers whose
// category or taxonomy labels match.
func NewNotifier(webhookURL string, delay time.Duration, excludeTags []string) *Notifier {
	return &Notifier{
		webhookURL:  webhookURL,
		delay:       delay,
		excludeTags: excludeTags,
		client:      &http.Client{Timeout: 10 * time.Second},
		sleep:       sleepContext,
	}
}

// Type identifies the channel in configuration and logs.
func (n *Notifier) Type() string {
	return "feishu"
}

// SendDigest posts the classified papers as a sequence of cards: a summary,
// an interest fast-lane card when any paper carries interest tags, then one
// card per taxonomy cluster. Any rejected post fails the whole digest.
func (n *Notifier) SendDigest(ctx context.Context, papers []domain.Paper) error {
	if n.webhookURL == "" {
		return fmt.Errorf("feishu notifier misconfigured")
	}

	filtered := filterByTags(papers, n.excludeTags)
	messages := buildPostMessages(filtered)
	for i, message := range messages {
		if err := n.postCard(ctx, message); err != nil {
			return fmt.Errorf("post card %d/%d: %w", i+1, len(messages), err)
		}
		if i < len(messages)-1 && n.delay > 0 {
			if err := n.sleep(ctx, n.delay); err != nil {
				return err
			}
		}
	}
	return nil
}

type textRun struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}

type postMessage struct {
	Title   string
	Content [][]textRun
}

type clusterKey struct {
	primaryCategory   string
	primaryArea       string
	secondaryFocus    string
	applicationDomain string
}

func clusterOf(paper domain.Paper) clusterKey {
	return clusterKey{
		primaryCategory:   orFallback(paper.PrimaryCategory, "unknown_category"),
		primaryArea:       orFallback(paper.PrimaryArea, "uncategorised"),
		secondaryFocus:    orFallback(paper.SecondaryFocus, "general"),
		applicationDomain: orFallback(paper.ApplicationDomain, "general"),
	}
}

func (k clusterKey) label() string {
	emoji, ok := emojiByPrimaryArea[k.primaryArea]
	if !ok {
		emoji = "📌"
	}
	return fmt.Sprintf("📂 %s | %s %s · %s · %s",
		k.primaryCategory, emoji, k.primaryArea, k.secondaryFocus, k.applicationDomain)
}

func (k clusterKey) less(other clusterKey) bool {
	if k.primaryCategory != other.primaryCategory {
		return k.primaryCategory < other.primaryCategory
	}
	if k.primaryArea != other.primaryArea {
		return k.primaryArea < other.primaryArea
	}
	if k.secondaryFocus != other.secondaryFocus {
		return k.secondaryFocus < other.secondaryFocus
	}
	return k.applicationDomain < other.applicationDomain
}

func buildPostMessages(papers []domain.Paper) []postMessage {
	var interest, regular []domain.Paper
	for _, paper := range papers {
		if len(paper.InterestTags) > 0 {
			interest = append(interest, paper)
		} else {
			regular = append(regular, paper)
		}
	}

	grouped := make(map[clusterKey][]domain.Paper)
	for _, paper := range regular {
		key := clusterOf(paper)
		grouped[key] = append(grouped[key], paper)
	}
	keys := make([]clusterKey, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	for _, key := range keys {
		sort.Slice(grouped[key], func(i, j int) bool {
			return grouped[key][i].Order < grouped[key][j].Order
		})
	}

	messages := []postMessage{buildSummaryPost(keys, grouped, len(papers), len(interest))}
	if len(interest) > 0 {
		sort.Slice(interest, func(i, j int) bool { return interest[i].Order < interest[j].Order })
		messages = append(messages, buildPaperListPost(
			fmt.Sprintf("⭐ Interest picks (%d)", len(interest)), interest))
	}
	for _, key := range keys {
		cluster := grouped[key]
		messages = append(messages, buildPaperListPost(
			fmt.Sprintf("%s (%d)", key.label(), len(cluster)), cluster))
	}
	return messages
}

func buildSummaryPost(keys []clusterKey, grouped map[clusterKey][]domain.Paper, total, interest int) postMessage {
	content := [][]textRun{{{
		Tag:  "text",
		Text: fmt.Sprintf("📚 %d papers | %d interest picks | %d clusters", total, interest, len(keys)),
	}}}
	for _, key := range keys {
		content = append(content, []textRun{{
			Tag:  "text",
			Text: fmt.Sprintf("%s: %d", key.label(), len(grouped[key])),
		}})
	}
	if total == 0 {
		content = [][]textRun{{{Tag: "text", Text: "📭 no papers today"}}}
	}
	return postMessage{Title: "📌 Daily paper digest", Content: content}
}

func buildPaperListPost(title string, papers []domain.Paper) postMessage {
	content := [][]textRun{{{Tag: "text", Text: title}}}
	for i, paper := range papers {
		displayTitle := fmt.Sprintf("%d. ✨ %s", i+1, orFallback(paper.Title, "(untitled)"))
		if paper.MirrorURL != "" {
			content = append(content, []textRun{{Tag: "a", Text: displayTitle, Href: paper.MirrorURL}})
		} else {
			content = append(content, []textRun{{Tag: "text", Text: displayTitle}})
		}

		if len(paper.Authors) > 0 {
			content = append(content, []textRun{{
				Tag:  "text",
				Text: "👥 " + strings.Join(paper.Authors, ", "),
			}})
		}
		content = append(content, []textRun{{
			Tag: "text",
			Text: fmt.Sprintf("🏷️ %s | %s | %s",
				orFallback(paper.PrimaryCategory, "unknown_category"),
				orFallback(paper.SecondaryFocus, "general"),
				orFallback(paper.ApplicationDomain, "general")),
		}})
		content = append(content, []textRun{{
			Tag:  "text",
			Text: "🧠 TL;DR: " + orFallback(paper.TLDR, "n/a"),
		}})
		if len(paper.InterestTags) > 0 {
			content = append(content, []textRun{{
				Tag:  "text",
				Text: "⭐ Tags: " + strings.Join(paper.InterestTags, ", "),
			}})
		}

		var links []textRun
		if paper.ArxivURL != "" {
			links = append(links, textRun{Tag: "a", Text: "🔗 ArXiv", Href: paper.ArxivURL})
		}
		if paper.MirrorURL != "" && paper.MirrorURL != paper.ArxivURL {
			if len(links) > 0 {
				links = append(links, textRun{Tag: "text", Text: " | "})
			}
			links = append(links, textRun{Tag: "a", Text: "📄 Papers.Cool", Href: paper.MirrorURL})
		}
		if len(links) > 0 {
			content = append(content, links)
		}
		content = append(content, []textRun{{Tag: "text", Text: " "}})
	}
	return postMessage{Title: title, Content: content}
}

func (n *Notifier) postCard(ctx context.Context, message postMessage) error {
	payload := map[string]any{
		"msg_type": "post",
		"content": map[string]any{
			"post": map[string]any{
				"zh_cn": map[string]any{
					"title":   message.Title,
					"content": message.Content,
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("feishu webhook error: %s %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var status struct {
		Code       int `json:"code"`
		StatusCode int `json:"StatusCode"`
	}
	if err := json.Unmarshal(raw, &status); err == nil {
		if status.Code != 0 || status.StatusCode != 0 {
			return fmt.Errorf("feishu webhook rejected message: %s", strings.TrimSpace(string(raw)))
		}
	}
	return nil
}

func filterByTags(papers []domain.Paper, excludeTags []string) []domain.Paper {
	excluded := make(map[string]struct{})
	for _, tag := range excludeTags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			excluded[tag] = struct{}{}
		}
	}
	if len(excluded) == 0 {
		return papers
	}

	var kept []domain.Paper
	for _, paper := range papers {
		if !matchesAny(paper, excluded) {
			kept = append(kept, paper)
		}
	}
	return kept
}

func matchesAny(paper domain.Paper, excluded map[string]struct{}) bool {
	labels := []string{
		paper.PrimaryCategory, paper.PrimaryArea,
		paper.SecondaryFocus, paper.ApplicationDomain,
	}
	labels = append(labels, paper.InterestTags...)
	for _, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		if label == "" {
			continue
		}
		if _, ok := excluded[label]; ok {
			return true
		}
	}
	return false
}

func orFallback(value, fallback string) string {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return fallback
	}
	return value
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

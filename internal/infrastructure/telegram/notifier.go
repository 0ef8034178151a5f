package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// Telegram caps messages at 4096 characters; stay under it with headroom.
const maxMessageLen = 3800

// Notifier sends digests to a Telegram chat via bot API.
type Notifier struct {
	botToken    string
	chatID      string
	excludeTags []string
	client      *http.Client
	endpoint    string
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string, excludeTags []string) *Notifier {
	return &Notifier{
		botToken:    botToken,
		chatID:      chatID,
		excludeTags: excludeTags,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Type identifies the channel in configuration and logs.
func (n *Notifier) Type() string {
	return "telegram"
}

// SendDigest renders the papers as Markdown and posts them, splitting into
// multiple messages when the digest exceeds the Telegram length limit.
func (n *Notifier) SendDigest(ctx context.Context, papers []domain.Paper) error {
	if n.botToken == "" || n.chatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	kept := excludeByTags(papers, n.excludeTags)
	for _, chunk := range renderDigest(kept) {
		if err := n.sendMessage(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) sendMessage(ctx context.Context, text string) error {
	endpoint := n.endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	}
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

func renderDigest(papers []domain.Paper) []string {
	var chunks []string
	var b strings.Builder
	b.WriteString(fmt.Sprintf("*Daily paper digest* — %d papers\n", len(papers)))

	for i, paper := range papers {
		entry := renderEntry(i+1, paper)
		if b.Len()+len(entry) > maxMessageLen {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		b.WriteString(entry)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

func renderEntry(idx int, paper domain.Paper) string {
	var b strings.Builder
	title := paper.Title
	if title == "" {
		title = "(untitled)"
	}
	link := paper.MirrorURL
	if link == "" {
		link = paper.ArxivURL
	}
	if link != "" {
		b.WriteString(fmt.Sprintf("\n%d. [%s](%s)\n", idx, title, link))
	} else {
		b.WriteString(fmt.Sprintf("\n%d. %s\n", idx, title))
	}
	if paper.PrimaryArea != "" {
		b.WriteString(fmt.Sprintf("_%s / %s / %s_\n",
			paper.PrimaryArea, paper.SecondaryFocus, paper.ApplicationDomain))
	}
	if paper.TLDR != "" {
		b.WriteString("TL;DR: " + paper.TLDR + "\n")
	}
	if len(paper.InterestTags) > 0 {
		b.WriteString("Tags: " + strings.Join(paper.InterestTags, ", ") + "\n")
	}
	return b.String()
}

func excludeByTags(papers []domain.Paper, excludeTags []string) []domain.Paper {
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
		labels := append([]string{
			paper.PrimaryCategory, paper.PrimaryArea,
			paper.SecondaryFocus, paper.ApplicationDomain,
		}, paper.InterestTags...)
		skip := false
		for _, label := range labels {
			if _, ok := excluded[strings.ToLower(strings.TrimSpace(label))]; ok {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, paper)
		}
	}
	return kept
}

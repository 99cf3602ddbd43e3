package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flatwatch/internal/domain"
	"flatwatch/internal/ports"
)

// Notifier delivers new listings to each user's chat via the Bot API.
type Notifier struct {
	botToken string
	client   *http.Client
}

var _ ports.NotificationSink = (*Notifier)(nil)

// NewNotifier registers the bot token.
func NewNotifier(botToken string) *Notifier {
	return &Notifier{
		botToken: botToken,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish posts one Markdown message per cycle with all new listings.
func (n *Notifier) Publish(ctx context.Context, user domain.User, listings []domain.Listing) error {
	if n.botToken == "" || user.ChatID == "" {
		return fmt.Errorf("telegram notifier misconfigured")
	}
	if len(listings) == 0 {
		return nil
	}
	return n.sendMessage(ctx, user.ChatID, formatListings(listings))
}

func (n *Notifier) sendMessage(ctx context.Context, chatID, text string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "false")

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

func formatListings(listings []domain.Listing) string {
	var b strings.Builder
	if len(listings) == 1 {
		b.WriteString("Found 1 new listing:\n\n")
	} else {
		fmt.Fprintf(&b, "Found %d new listings:\n\n", len(listings))
	}

	for _, listing := range listings {
		fmt.Fprintf(&b, "*%s*\n", escapeMarkdown(listing.Title))
		var facts []string
		if listing.Price != "" {
			facts = append(facts, listing.Price)
		}
		if listing.Size != "" {
			facts = append(facts, listing.Size)
		}
		if listing.Address != "" {
			facts = append(facts, listing.Address)
		}
		if len(facts) > 0 {
			b.WriteString(escapeMarkdown(strings.Join(facts, " · ")))
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n\n", listing.Link)
	}
	return strings.TrimSpace(b.String())
}

var markdownEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "[", "\\[", "`", "\\`")

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

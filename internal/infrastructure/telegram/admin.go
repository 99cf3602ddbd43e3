package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"flatwatch/internal/domain"
	"flatwatch/internal/ports"
)

// AdminAlerter forwards critical errors, aggregate failure reports, and
// lifecycle events to the operator chat. Delivery failures are logged and
// dropped: alerting must never take the watcher down.
type AdminAlerter struct {
	notifier *Notifier
	chatID   string
	logger   *slog.Logger
}

var _ ports.AdminAlerter = (*AdminAlerter)(nil)

// NewAdminAlerter wires the operator chat. An empty chat id silently disables
// all alerting.
func NewAdminAlerter(botToken, chatID string, logger *slog.Logger) *AdminAlerter {
	return &AdminAlerter{
		notifier: &Notifier{botToken: botToken, client: &http.Client{Timeout: 10 * time.Second}},
		chatID:   chatID,
		logger:   logger,
	}
}

// Critical reports an unrecoverable error.
func (a *AdminAlerter) Critical(ctx context.Context, details domain.ErrorDetails) {
	var b strings.Builder
	b.WriteString("🚨 *Critical error*\n")
	fmt.Fprintf(&b, "Type: %s\n", details.Type)
	if details.Provider != "" {
		fmt.Fprintf(&b, "Provider: %s\n", details.Provider)
	}
	if details.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", escapeMarkdown(details.Source))
	}
	fmt.Fprintf(&b, "```\n%s\n```", details.Message)
	a.send(ctx, b.String())
}

// AggregateReport reports one failure streak: per-provider error counts plus
// the number of distinct affected users.
func (a *AdminAlerter) AggregateReport(ctx context.Context, report ports.HealthReport) {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ *Scraping degraded* — %d consecutive failed cycles\n", report.FailedCycles)
	fmt.Fprintf(&b, "Affected users: %d\n", report.AffectedUsers)

	providers := make([]string, 0, len(report.ErrorsByName))
	for name := range report.ErrorsByName {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	for _, name := range providers {
		fmt.Fprintf(&b, "• %s: %d errors\n", name, report.ErrorsByName[name])
	}

	for i, sample := range report.Samples {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "`%s: %s`\n", sample.Provider, sample.Message)
	}
	a.send(ctx, b.String())
}

// Lifecycle passes through watcher lifecycle events.
func (a *AdminAlerter) Lifecycle(ctx context.Context, event string) {
	a.send(ctx, "ℹ️ "+escapeMarkdown(event))
}

func (a *AdminAlerter) send(ctx context.Context, text string) {
	if a.chatID == "" || a.notifier.botToken == "" {
		return
	}
	if err := a.notifier.sendMessage(ctx, a.chatID, text); err != nil && a.logger != nil {
		a.logger.Error("deliver admin alert", "error", err)
	}
}

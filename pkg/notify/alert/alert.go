// Package alert sends operational Slack notifications for the failure
// modes spec.md §7 says should page a human rather than merely fail an
// API call: SequenceTooLong and repeated ExternalServiceError.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"

	apperrors "github.com/obsdb/odb/internal/errors"
)

// Notifier posts operational alerts to a Slack incoming webhook.
type Notifier struct {
	webhookURL string
	channel    string

	mu                 sync.Mutex
	externalServiceHit map[string]int
	threshold          int
}

// NewNotifier builds a Notifier. threshold is the number of consecutive
// ExternalServiceError failures for the same service before an alert
// fires (spec.md §7, "repeated ExternalServiceError").
func NewNotifier(webhookURL, channel string, threshold int) *Notifier {
	if threshold <= 0 {
		threshold = 3
	}
	return &Notifier{
		webhookURL:         webhookURL,
		channel:             channel,
		externalServiceHit: make(map[string]int),
		threshold:          threshold,
	}
}

// SequenceTooLong alerts that a generated sequence exceeded the
// maximum representable atom count for observationID.
func (n *Notifier) SequenceTooLong(ctx context.Context, observationID string) error {
	return n.post(ctx, fmt.Sprintf(":warning: sequence too long for observation `%s`", observationID))
}

// ExternalServiceFailure records one ExternalServiceError for service
// and alerts once the consecutive-failure threshold is reached. A
// successful call should follow with Reset to clear the streak.
func (n *Notifier) ExternalServiceFailure(ctx context.Context, service string, cause error) error {
	n.mu.Lock()
	n.externalServiceHit[service]++
	count := n.externalServiceHit[service]
	n.mu.Unlock()

	if count < n.threshold {
		return nil
	}
	return n.post(ctx, fmt.Sprintf(":rotating_light: %s has failed %d consecutive times: %v", service, count, cause))
}

// Reset clears the consecutive-failure streak for service after a
// successful call.
func (n *Notifier) Reset(service string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.externalServiceHit, service)
}

func (n *Notifier) post(ctx context.Context, text string) error {
	msg := slack.WebhookMessage{
		Channel: n.channel,
		Text:    text,
	}
	if err := slack.PostWebhookContext(ctx, n.webhookURL, &msg); err != nil {
		return apperrors.ExternalServiceError("slack", err.Error())
	}
	return nil
}

// RateLimiter spaces out repeated alert attempts for the same key so a
// flapping dependency doesn't spam the channel; it is intentionally not
// wired into Notifier's methods, which fire unconditionally, leaving the
// choice of whether to rate-limit to the caller (e.g. a cron-driven
// health check versus an interactive API request).
type RateLimiter struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	interval time.Duration
}

// NewRateLimiter returns a RateLimiter allowing at most one alert per
// key every interval.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{lastSent: make(map[string]time.Time), interval: interval}
}

// Allow reports whether an alert for key may be sent now, recording the
// attempt if so.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.lastSent[key]; ok && time.Since(last) < r.interval {
		return false
	}
	r.lastSent[key] = time.Now()
	return true
}

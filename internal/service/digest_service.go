package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"challengetracker/internal/models"
)

const settingDigestLastSent = "digestLastSent"

// SettingsStore is the key/value table the digest records its last run in
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// DigestService emails the day's history once a day
type DigestService struct {
	ledger     *HistoryLedger
	email      *EmailService
	settings   SettingsStore
	recipients []string
	hour       int
}

// NewDigestService creates a digest sent at or after hour (UTC) to recipients
func NewDigestService(ledger *HistoryLedger, email *EmailService, settings SettingsStore, recipients []string, hour int) *DigestService {
	return &DigestService{
		ledger:     ledger,
		email:      email,
		settings:   settings,
		recipients: recipients,
		hour:       hour,
	}
}

// Enabled reports whether there is anything to send through
func (d *DigestService) Enabled() bool {
	return d.email.IsEnabled() && len(d.recipients) > 0
}

// RunOnce sends the digest for now's day if it is due and not yet sent.
// It reports whether a digest went out.
func (d *DigestService) RunOnce(ctx context.Context, now time.Time) (bool, error) {
	if !d.Enabled() {
		return false, nil
	}
	now = now.UTC()
	if now.Hour() < d.hour {
		return false, nil
	}
	day := models.DayOf(now)
	last, _, err := d.settings.GetSetting(ctx, settingDigestLastSent)
	if err != nil {
		return false, err
	}
	if last == day {
		return false, nil
	}

	entries, err := d.ledger.ForDay(ctx, now)
	if err != nil {
		return false, fmt.Errorf("failed to read history for digest: %w", err)
	}
	if len(entries) > 0 {
		if err := d.email.SendDigestEmail(ctx, d.recipients, day, entries); err != nil {
			return false, err
		}
	}
	if err := d.settings.SetSetting(ctx, settingDigestLastSent, day); err != nil {
		return len(entries) > 0, err
	}
	return len(entries) > 0, nil
}

// Run checks every interval until ctx is cancelled
func (d *DigestService) Run(ctx context.Context, interval time.Duration) {
	if !d.Enabled() {
		log.Println("Daily digest disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := d.RunOnce(ctx, now); err != nil {
				log.Printf("Daily digest failed: %v", err)
			}
		}
	}
}

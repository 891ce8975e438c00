// Package notify delivers batches of promising listings to the user.
package notify

import (
	"context"
	"fmt"
	"strings"

	"rental-pipeline/location"
	"rental-pipeline/models"
	"rental-pipeline/utils"
)

// Sender delivers one batch of listings. A returned error means nothing
// should be considered delivered.
type Sender interface {
	Send(ctx context.Context, listings []models.Listing) error
}

// Title is the subject line for a batch.
func Title(n int) string {
	return fmt.Sprintf("latest %d listings", n)
}

// Body renders one block per listing.
func Body(listings []models.Listing) string {
	var b strings.Builder
	for i := range listings {
		if i > 0 {
			b.WriteString("\n")
		}
		writeListing(&b, &listings[i])
	}
	return b.String()
}

func writeListing(b *strings.Builder, l *models.Listing) {
	head := l.Name
	if l.Price != nil {
		head = fmt.Sprintf("$%.0f  %s", *l.Price, l.Name)
	}
	b.WriteString(head + "\n")

	var facts []string
	if l.Bedrooms != nil {
		facts = append(facts, fmt.Sprintf("%dbr", *l.Bedrooms))
	}
	if l.Bathrooms != nil {
		facts = append(facts, fmt.Sprintf("%gba", *l.Bathrooms))
	}
	if l.Size != nil {
		facts = append(facts, fmt.Sprintf("%.0fft2", *l.Size))
	}
	if l.TransitStop != nil {
		stop := "near " + l.TransitStop.Name
		if d, ok := location.StopDistance(l); ok {
			stop += fmt.Sprintf(" (%.1f km)", d)
		}
		facts = append(facts, stop)
	}
	if l.Score != nil {
		facts = append(facts, fmt.Sprintf("score %.0f", l.Score.Total))
	}
	if len(facts) > 0 {
		b.WriteString("  " + strings.Join(facts, ", ") + "\n")
	}

	if len(l.Tags) > 0 {
		names := make([]string, len(l.Tags))
		for i, t := range l.Tags {
			names[i] = t.DisplayName()
		}
		b.WriteString("  " + strings.Join(names, " | ") + "\n")
	}
	b.WriteString("  " + l.URL + "\n")
}

// LogSender writes batches to the log instead of delivering them.
type LogSender struct {
	logger *utils.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *utils.Logger) *LogSender {
	return &LogSender{logger: logger.With("notify")}
}

// Send logs the rendered batch.
func (s *LogSender) Send(_ context.Context, listings []models.Listing) error {
	s.logger.Info("%s\n%s", Title(len(listings)), Body(listings))
	return nil
}

package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"rental-pipeline/models"
	"rental-pipeline/utils"
)

// ShoutrrrSender delivers batches to every configured service URL.
type ShoutrrrSender struct {
	sender *router.ServiceRouter
	logger *utils.Logger
}

// NewShoutrrrSender validates urls and builds one router over all of them.
func NewShoutrrrSender(urls []string, timeout time.Duration, logger *utils.Logger) (*ShoutrrrSender, error) {
	if len(urls) == 0 {
		return nil, errors.New("notify: at least one URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("notify: create sender: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrSender{sender: sender, logger: logger.With("notify")}, nil
}

// Send delivers the batch. Any failing service fails the whole send.
func (s *ShoutrrrSender) Send(_ context.Context, listings []models.Listing) error {
	params := stypes.Params{}
	params.SetTitle(Title(len(listings)))

	var failed []error
	for _, err := range s.sender.Send(Body(listings), &params) {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notify: send %d listings: %w", len(listings), errors.Join(failed...))
	}
	s.logger.Info("Sent %d listings", len(listings))
	return nil
}

package status

import (
	"context"
	"fmt"
	"log"

	"ace-status/internal/feed"
	"ace-status/internal/notify"
	"ace-status/internal/transit"
)

// Outcome of SendStatus.
type Outcome string

const (
	Sent    Outcome = "sent"
	Skipped Outcome = "skipped"
)

// Options selects how the status text is rendered. Destination and
// StopFilter are independent; when StopFilter is set the output is the
// comma-joined per-train ETAs at that stop.
type Options struct {
	Destination string
	StopFilter  string
}

// Fetcher is the feed cache seen by the service.
type Fetcher interface {
	Get(ctx context.Context, name string) (feed.Records, error)
}

// Metrics receives send outcomes. Implementations must be safe for
// concurrent use.
type Metrics interface {
	NotificationResult(result string)
}

type Service struct {
	feeds   Fetcher
	sink    notify.Sink
	metrics Metrics
}

// NewService wires the service. sink may be nil when only GetStatus is used.
func NewService(feeds Fetcher, sink notify.Sink, m Metrics) *Service {
	return &Service{feeds: feeds, sink: sink, metrics: m}
}

// Trains fetches both feeds and returns the enriched in-service trains.
// Stops are fetched first because enrichment depends on them.
func (s *Service) Trains(ctx context.Context, opts Options) ([]transit.Train, error) {
	stopRecs, err := s.feeds.Get(ctx, feed.FeedStops)
	if err != nil {
		return nil, err
	}
	dir := transit.NewDirectory(feed.DecodeStops(stopRecs))

	vehicleRecs, err := s.feeds.Get(ctx, feed.FeedVehicles)
	if err != nil {
		return nil, err
	}
	return transit.Enrich(feed.DecodeVehicles(vehicleRecs), dir, transit.EnrichOptions{
		InServiceOnly:   true,
		DestinationName: opts.Destination,
	}), nil
}

// GetStatus renders the current status. No trains, or none matching the
// stop filter, yields "" and no error.
func (s *Service) GetStatus(ctx context.Context, opts Options) (string, error) {
	trains, err := s.Trains(ctx, opts)
	if err != nil {
		return "", err
	}
	if opts.StopFilter != "" {
		return transit.JoinStopFiltered(trains, opts.StopFilter), nil
	}
	return transit.JoinStatusLines(trains), nil
}

// SendStatus computes the status and forwards it to the sink. An empty
// status is Skipped without contacting the sink.
func (s *Service) SendStatus(ctx context.Context, opts Options) (Outcome, error) {
	text, err := s.GetStatus(ctx, opts)
	if err != nil {
		return "", err
	}
	if text == "" {
		s.observe(string(Skipped))
		return Skipped, nil
	}
	if s.sink == nil {
		s.observe("error")
		return "", notify.ErrMissingCredentials
	}
	log.Printf("sending status (%d bytes)", len(text))
	if err := s.sink.Post(ctx, text); err != nil {
		s.observe("error")
		return "", fmt.Errorf("send status: %w", err)
	}
	s.observe(string(Sent))
	return Sent, nil
}

func (s *Service) observe(result string) {
	if s.metrics != nil {
		s.metrics.NotificationResult(result)
	}
}

package feed

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"path"
)

//go:embed seed/*.json
var seedFiles embed.FS

// Seed serves fixed snapshots instead of calling the provider. It backs the
// offline mode and tests.
type Seed struct {
	feeds map[string]Records
}

// NewSeed loads the embedded fixtures, one file per feed name.
func NewSeed() (*Seed, error) {
	feeds := make(map[string]Records)
	for _, name := range []string{FeedStops, FeedVehicles} {
		b, err := seedFiles.ReadFile(path.Join("seed", name+".json"))
		if err != nil {
			return nil, fmt.Errorf("read seed %s: %w", name, err)
		}
		var recs Records
		if err := json.Unmarshal(b, &recs); err != nil {
			return nil, fmt.Errorf("parse seed %s: %w", name, err)
		}
		feeds[name] = recs
	}
	return &Seed{feeds: feeds}, nil
}

// NewSeedFromMap builds a Seed from in-memory snapshots.
func NewSeedFromMap(feeds map[string]Records) *Seed {
	return &Seed{feeds: feeds}
}

func (s *Seed) Fetch(ctx context.Context, service string) (Records, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs, ok := s.feeds[service]
	if !ok {
		return nil, fmt.Errorf("no seed data for %q", service)
	}
	return recs, nil
}

// MustRecords marshals values into a Records snapshot. It panics on values
// that cannot be marshalled and is meant for fixtures.
func MustRecords[T any](values ...T) Records {
	recs := make(Records, 0, len(values))
	for _, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		recs = append(recs, b)
	}
	return recs
}

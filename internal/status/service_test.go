package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ace-status/internal/feed"
	"ace-status/internal/notify"
)

type stopFixture struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type etaFixture struct {
	StopID   int    `json:"stopID"`
	Schedule string `json:"schedule,omitempty"`
	Status   string `json:"status"`
}

type vehicleFixture struct {
	EquipmentID        string       `json:"equipmentID"`
	ScheduleNumber     string       `json:"scheduleNumber"`
	OnSchedule         int          `json:"onSchedule"`
	InService          bool         `json:"inService"`
	NextStopID         int          `json:"nextStopID"`
	MinutesToNextStops []etaFixture `json:"minutesToNextStops"`
}

func stops() feed.Records {
	return feed.MustRecords(stopFixture{1, "Stockton"}, stopFixture{2, "Lathrop"})
}

func v101() vehicleFixture {
	return vehicleFixture{
		EquipmentID: "v1", ScheduleNumber: "101", OnSchedule: -3, InService: true, NextStopID: 1,
		MinutesToNextStops: []etaFixture{{StopID: 1, Status: "5 min"}},
	}
}

func newCache(vehicles ...vehicleFixture) *feed.Cache {
	src := feed.NewSeedFromMap(map[string]feed.Records{
		feed.FeedStops:    stops(),
		feed.FeedVehicles: feed.MustRecords(vehicles...),
	})
	return feed.NewCache(src, time.Minute)
}

type recordingSink struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (s *recordingSink) Post(_ context.Context, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

type countingMetrics struct {
	mu      sync.Mutex
	results map[string]int
}

func (m *countingMetrics) NotificationResult(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		m.results = make(map[string]int)
	}
	m.results[result]++
}

func TestGetStatus(t *testing.T) {
	idle := v101()
	idle.ScheduleNumber = "104"
	idle.InService = false
	svc := NewService(newCache(v101(), idle), nil, nil)

	got, err := svc.GetStatus(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Train 101 is 3 min late. Next stop: Stockton. ETA: 5 min. ", got)
}

func TestGetStatusKeepsTrainWithMistypedFields(t *testing.T) {
	src := feed.NewSeedFromMap(map[string]feed.Records{
		feed.FeedStops: stops(),
		feed.FeedVehicles: {
			[]byte(`{"equipmentID":"v1","scheduleNumber":"101","onSchedule":-0.5,"inService":true,"nextStopID":1,
				"minutesToNextStops":[{"stopID":1,"status":5}]}`),
			[]byte(`{"equipmentID":"v2","scheduleNumber":"102","onSchedule":0,"inService":true,"nextStopID":1,
				"minutesToNextStops":[{"stopID":1,"status":"7 min"}]}`),
		},
	})
	svc := NewService(feed.NewCache(src, time.Minute), nil, nil)

	got, err := svc.GetStatus(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t,
		"Train 101 is 0.5 min late. Next stop: Stockton. ETA: 5. \n"+
			"Train 102 is On Time. Next stop: Stockton. ETA: 7 min. ",
		got)
}

func TestGetStatusMultipleTrainsJoinedByNewline(t *testing.T) {
	b := v101()
	b.ScheduleNumber = "103"
	b.OnSchedule = 2
	b.MinutesToNextStops = append(b.MinutesToNextStops, etaFixture{StopID: 2, Status: "18 min"})
	svc := NewService(newCache(v101(), b), nil, nil)

	got, err := svc.GetStatus(context.Background(), Options{Destination: "Lathrop"})
	require.NoError(t, err)
	assert.Equal(t,
		"Train 101 is 3 min late. Next stop: Stockton. ETA: 5 min. Dest: Lathrop. ETA: unknown\n"+
			"Train 103 is On Time. Next stop: Stockton. ETA: 5 min. Dest: Lathrop. ETA: 18 min",
		got)
}

func TestGetStatusStopFilter(t *testing.T) {
	b := v101()
	b.ScheduleNumber = "103"
	b.MinutesToNextStops = []etaFixture{{StopID: 1, Schedule: "6:10 AM", Status: "12 min"}}
	svc := NewService(newCache(v101(), b), nil, nil)

	got, err := svc.GetStatus(context.Background(), Options{StopFilter: "Stockton"})
	require.NoError(t, err)
	assert.Equal(t, "[101 to Stockton. ETA: 5 min], [103 to Stockton. ETA: 6:10 AM]", got)

	got, err = svc.GetStatus(context.Background(), Options{StopFilter: "Lathrop"})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestUnknownDestinationDoesNotFail(t *testing.T) {
	svc := NewService(newCache(v101()), nil, nil)
	got, err := svc.GetStatus(context.Background(), Options{Destination: "San Jose"})
	require.NoError(t, err)
	assert.Equal(t, "Train 101 is 3 min late. Next stop: Stockton. ETA: 5 min. ", got)
}

func TestSendStatusSkipsWhenNoTrains(t *testing.T) {
	idle := v101()
	idle.InService = false
	sink := &recordingSink{}
	m := &countingMetrics{}
	svc := NewService(newCache(idle), sink, m)

	got, err := svc.GetStatus(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "", got)

	outcome, err := svc.SendStatus(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	assert.Empty(t, sink.messages)
	assert.Equal(t, 1, m.results["skipped"])
}

func TestSendStatusPostsText(t *testing.T) {
	sink := &recordingSink{}
	m := &countingMetrics{}
	svc := NewService(newCache(v101()), sink, m)

	outcome, err := svc.SendStatus(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, Sent, outcome)
	assert.Equal(t, []string{"Train 101 is 3 min late. Next stop: Stockton. ETA: 5 min. "}, sink.messages)
	assert.Equal(t, 1, m.results["sent"])
}

func TestSendStatusPropagatesSinkErrors(t *testing.T) {
	sink := &recordingSink{err: notify.ErrMissingCredentials}
	svc := NewService(newCache(v101()), sink, nil)

	_, err := svc.SendStatus(context.Background(), Options{})
	assert.ErrorIs(t, err, notify.ErrMissingCredentials)

	delivery := &notify.NotificationError{Sink: "webhook", StatusCode: 500, Err: errors.New("boom")}
	sink.err = delivery
	_, err = svc.SendStatus(context.Background(), Options{})
	var nerr *notify.NotificationError
	assert.ErrorAs(t, err, &nerr)
}

type failingSource struct{}

func (failingSource) Fetch(context.Context, string) (feed.Records, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestUpstreamFailureSurfaces(t *testing.T) {
	sink := &recordingSink{}
	svc := NewService(feed.NewCache(failingSource{}, time.Minute), sink, nil)

	_, err := svc.GetStatus(context.Background(), Options{})
	var upstream *feed.UpstreamFetchError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, feed.FeedStops, upstream.Feed)

	_, err = svc.SendStatus(context.Background(), Options{})
	assert.ErrorAs(t, err, &upstream)
	assert.Empty(t, sink.messages)
}

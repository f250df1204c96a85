package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/mahaj/chat-feed/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var me = session.Session{Token: "tok", UserID: "me"}

type result struct {
	msgs []model.Message
	err  error
}

// scriptedFetch serves queued results in call order and repeats the last one.
type scriptedFetch struct {
	mu      sync.Mutex
	results []result
	calls   atomic.Int32
}

func (s *scriptedFetch) fetch(ctx context.Context, _ session.Session) ([]model.Message, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r.msgs, r.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recordingSink) Publish(_ context.Context, events []model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recordingSink) all() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

func peerIDs(s []Summary) []string {
	out := make([]string, len(s))
	for i, x := range s {
		out[i] = x.PeerID
	}
	return out
}

func TestPollerFirstTickBuildsFeedAndNames(t *testing.T) {
	src := &scriptedFetch{results: []result{{msgs: []model.Message{dm("hi", "A", "me", 1), dm("yo", "me", "B", 2)}}}}
	users := newFakeUsers(
		model.UserProfile{ID: "A", FirstName: "Ada", LastName: "L"},
		model.UserProfile{ID: "B", FirstName: "Bob", LastName: "M"},
	)
	p := NewPoller(me, src.fetch, users.lookup, Options{Interval: time.Hour})

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	require.Eventually(t, func() bool { return len(p.Snapshot().Names) == 2 }, time.Second, 5*time.Millisecond)
	snap := p.Snapshot()
	assert.Equal(t, []string{"B", "A"}, peerIDs(snap.Feed))
	assert.Equal(t, "Ada L", snap.Names.Name("A"))
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestPollerFailedTickKeepsPreviousFeed(t *testing.T) {
	src := &scriptedFetch{results: []result{
		{msgs: []model.Message{dm("hi", "A", "me", 1)}},
		{err: errors.New("502 bad gateway")},
	}}
	p := NewPoller(me, src.fetch, newFakeUsers().lookup, Options{Interval: time.Hour})

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()
	require.Eventually(t, func() bool { return len(p.Snapshot().Feed) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Refresh())
	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, []string{"A"}, peerIDs(p.Snapshot().Feed))
}

func TestPollerDiscardsResultArrivingAfterStop(t *testing.T) {
	started := make(chan struct{})
	fetch := func(ctx context.Context, _ session.Session) ([]model.Message, error) {
		close(started)
		<-ctx.Done()
		// the response lands after the view went away
		return []model.Message{dm("late", "A", "me", 1)}, nil
	}
	users := newFakeUsers(model.UserProfile{ID: "A", FirstName: "Ada", LastName: "L"})
	p := NewPoller(me, fetch, users.lookup, Options{Interval: time.Hour})

	require.NoError(t, p.Start(context.Background()))
	<-started
	p.Stop()

	snap := p.Snapshot()
	assert.Empty(t, snap.Feed)
	assert.Empty(t, snap.Names)
	assert.True(t, snap.UpdatedAt.IsZero())
	assert.Equal(t, 0, users.callCount("A"))
	assert.False(t, p.Running())
}

func TestPollerNoCallsAfterStop(t *testing.T) {
	src := &scriptedFetch{results: []result{{msgs: []model.Message{dm("hi", "A", "me", 1)}}}}
	p := NewPoller(me, src.fetch, newFakeUsers().lookup, Options{Interval: 5 * time.Millisecond})

	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, time.Millisecond)
	p.Stop()

	n := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, src.calls.Load())
	assert.ErrorIs(t, p.Refresh(), ErrNotRunning)
}

func TestPollerDropsOlderTickThatFinishesLast(t *testing.T) {
	var calls atomic.Int32
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	fetch := func(ctx context.Context, _ session.Session) ([]model.Message, error) {
		if calls.Add(1) == 1 {
			close(firstStarted)
			<-releaseFirst
			return []model.Message{dm("old", "A", "me", 1)}, nil
		}
		return []model.Message{dm("new", "B", "me", 2)}, nil
	}
	p := NewPoller(me, fetch, newFakeUsers().lookup, Options{Interval: time.Hour})

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()
	<-firstStarted

	require.NoError(t, p.Refresh())
	require.Eventually(t, func() bool { return len(p.Snapshot().Feed) == 1 }, time.Second, 5*time.Millisecond)

	close(releaseFirst)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"B"}, peerIDs(p.Snapshot().Feed))
}

func TestPollerLifecycleErrors(t *testing.T) {
	src := &scriptedFetch{results: []result{{}}}

	incomplete := NewPoller(session.Session{Token: "tok"}, src.fetch, newFakeUsers().lookup, Options{})
	assert.ErrorIs(t, incomplete.Start(context.Background()), session.ErrIncomplete)

	p := NewPoller(me, src.fetch, newFakeUsers().lookup, Options{Interval: time.Hour})
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyRunning)
	p.Stop()
	p.Stop()

	require.NoError(t, p.Start(context.Background()), "a stopped poller can be restarted")
	p.Stop()
}

func TestPollerParentContextCancel(t *testing.T) {
	src := &scriptedFetch{results: []result{{}}}
	p := NewPoller(me, src.fetch, newFakeUsers().lookup, Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	cancel()
	require.Eventually(t, func() bool { return !p.Running() }, time.Second, 5*time.Millisecond)
}

func TestPollerSubscribe(t *testing.T) {
	src := &scriptedFetch{results: []result{{msgs: []model.Message{dm("hi", "A", "me", 1)}}}}
	users := newFakeUsers(model.UserProfile{ID: "A", FirstName: "Ada", LastName: "L"})
	p := NewPoller(me, src.fetch, users.lookup, Options{Interval: time.Hour})

	updates, unsubscribe := p.Subscribe()
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	deadline := time.After(time.Second)
	for {
		select {
		case snap := <-updates:
			require.Len(t, snap.Feed, 1)
			if snap.Names.Name("A") == "Ada L" {
				unsubscribe()
				unsubscribe()
				for range updates {
				}
				return
			}
		case <-deadline:
			t.Fatal("no snapshot with resolved name")
		}
	}
}

func TestPollerPublishesDiffAfterFirstTick(t *testing.T) {
	src := &scriptedFetch{results: []result{
		{msgs: []model.Message{dm("a1", "A", "me", 1)}},
		{msgs: []model.Message{dm("a1", "A", "me", 1), dm("b1", "B", "me", 2)}},
	}}
	sink := &recordingSink{}
	p := NewPoller(me, src.fetch, newFakeUsers().lookup, Options{Interval: time.Hour, Sink: sink})

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()
	require.Eventually(t, func() bool { return len(p.Snapshot().Feed) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, sink.all(), "initial load is not announced")

	require.NoError(t, p.Refresh())
	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
	ev := sink.all()[0]
	assert.Equal(t, model.TypeConversationAdded, ev.Type)
	assert.Equal(t, "B", ev.PeerID)
}

func TestPollerThreadMode(t *testing.T) {
	msgs := []model.Message{
		{ID: "2", SenderID: "A", GroupID: "g1", CreatedAt: at(2)},
		{ID: "1", SenderID: "me", GroupID: "g1", CreatedAt: at(1)},
		{ID: "3", SenderID: "C", GroupID: "g1", CreatedAt: at(3)},
	}
	src := &scriptedFetch{results: []result{{msgs: msgs}}}
	users := newFakeUsers(
		model.UserProfile{ID: "A", FirstName: "Ada", LastName: "L"},
		model.UserProfile{ID: "C", FirstName: "Cy", LastName: "D"},
	)
	p := NewPoller(me, src.fetch, users.lookup, Options{Interval: time.Hour, Mode: ModeThread})

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()
	require.Eventually(t, func() bool { return len(p.Snapshot().Names) == 2 }, time.Second, 5*time.Millisecond)

	snap := p.Snapshot()
	assert.Equal(t, []string{"1", "2", "3"}, ids(snap.Thread))
	assert.Nil(t, snap.Feed)
	assert.Equal(t, 0, users.callCount("me"))
}

package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/mahaj/chat-feed/pkg/session"
	"go.uber.org/zap"
)

const DefaultInterval = 2 * time.Second

var (
	ErrAlreadyRunning = errors.New("feed: poller already running")
	ErrNotRunning     = errors.New("feed: poller not running")
)

// Mode selects what a Poller keeps from each batch.
type Mode int

const (
	// ModeFeed keeps the latest message per conversation.
	ModeFeed Mode = iota
	// ModeThread keeps every message of one conversation, oldest first.
	ModeThread
)

// FetchFunc returns the full message batch for one tick.
type FetchFunc func(ctx context.Context, s session.Session) ([]model.Message, error)

// Options configures a Poller. Zero values take defaults.
type Options struct {
	Interval    time.Duration
	Mode        Mode
	Concurrency int
	Logger      *zap.Logger
	Sink        EventSink
}

// Snapshot is a copy of the poller state after an applied change.
type Snapshot struct {
	Feed      []Summary
	Thread    []model.Message
	Names     NameCache
	UpdatedAt time.Time
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{UpdatedAt: s.UpdatedAt, Names: s.Names.Merge(nil)}
	if s.Feed != nil {
		out.Feed = append([]Summary(nil), s.Feed...)
	}
	if s.Thread != nil {
		out.Thread = append([]model.Message(nil), s.Thread...)
	}
	return out
}

// Poller refetches messages on a fixed interval and rebuilds the feed from
// scratch on every tick. Ticks are not serialised; a result older than the
// last applied one is dropped, as is any result that completes after Stop.
type Poller struct {
	sess     session.Session
	fetch    FetchFunc
	resolver *Resolver
	opts     Options
	log      *zap.Logger

	seq atomic.Uint64

	mu      sync.Mutex
	state   Snapshot
	applied uint64
	run     *run
	subs    map[int]chan Snapshot
	nextSub int
}

type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex // orders wg.Add against cancel
	wg     sync.WaitGroup
}

// NewPoller returns a stopped poller for sess.
func NewPoller(sess session.Session, fetch FetchFunc, lookup LookupFunc, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("user_id", sess.UserID))
	return &Poller{
		sess:     sess,
		fetch:    fetch,
		resolver: NewResolver(lookup, opts.Concurrency, log),
		opts:     opts,
		log:      log,
		state:    Snapshot{Names: NameCache{}},
		subs:     make(map[int]chan Snapshot),
	}
}

// Start runs one tick immediately and then one per interval until Stop or
// until ctx is done.
func (p *Poller) Start(ctx context.Context) error {
	if !p.sess.Valid() {
		return session.ErrIncomplete
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run != nil {
		return ErrAlreadyRunning
	}

	r := &run{}
	r.ctx, r.cancel = context.WithCancel(ctx)
	p.run = r

	r.wg.Add(1)
	go p.loop(r)
	p.log.Info("poller started", zap.Duration("interval", p.opts.Interval))
	return nil
}

// Stop cancels polling and waits for the loop and in-flight ticks to return.
// Nothing is applied and no request is issued once Stop has returned.
func (p *Poller) Stop() {
	p.mu.Lock()
	r := p.run
	p.run = nil
	p.mu.Unlock()
	if r == nil {
		return
	}

	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
	p.log.Info("poller stopped")
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run != nil
}

// Refresh triggers an extra tick on the running poller without waiting for
// it, e.g. right after the user sent a message.
func (p *Poller) Refresh() error {
	p.mu.Lock()
	r := p.run
	p.mu.Unlock()
	if r == nil {
		return ErrNotRunning
	}
	p.spawn(r)
	return nil
}

func (p *Poller) loop(r *run) {
	defer r.wg.Done()

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.spawn(r)
	for {
		select {
		case <-r.ctx.Done():
			p.mu.Lock()
			if p.run == r {
				p.run = nil
			}
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.spawn(r)
		}
	}
}

func (p *Poller) spawn(r *run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return
	}
	seq := p.seq.Add(1)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		p.tick(r.ctx, seq)
	}()
}

func (p *Poller) tick(ctx context.Context, seq uint64) {
	if ctx.Err() != nil {
		return
	}
	msgs, err := p.fetch(ctx, p.sess)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("poll failed, keeping previous feed", zap.Uint64("tick", seq), zap.Error(err))
		}
		return
	}

	var (
		feed   []Summary
		thread []model.Message
		ids    []string
	)
	switch p.opts.Mode {
	case ModeThread:
		thread = SortThread(msgs)
		ids = Senders(thread, p.sess.UserID)
	default:
		feed = BuildFeed(msgs, p.sess.UserID)
		ids = Peers(feed)
	}

	prev, first, names, ok := p.apply(ctx, seq, feed, thread)
	if !ok {
		return
	}

	if p.opts.Sink != nil && p.opts.Mode == ModeFeed && !first {
		if events := Diff(p.sess.UserID, prev, feed); len(events) > 0 {
			if err := p.opts.Sink.Publish(ctx, events); err != nil && ctx.Err() == nil {
				p.log.Warn("publish feed events", zap.Int("events", len(events)), zap.Error(err))
			}
		}
	}

	if len(names.Missing(ids)) == 0 {
		return
	}
	resolved := p.resolver.ResolveNames(ctx, ids, names)
	p.mergeNames(ctx, resolved)
}

// apply installs the result of tick seq unless the run was cancelled or a
// newer tick has already been applied. It returns the replaced feed, whether
// this was the first applied tick, and the current names.
func (p *Poller) apply(ctx context.Context, seq uint64, feed []Summary, thread []model.Message) ([]Summary, bool, NameCache, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.Err() != nil {
		p.log.Debug("discarding result after cancellation", zap.Uint64("tick", seq))
		return nil, false, nil, false
	}
	if seq <= p.applied {
		p.log.Debug("discarding stale result", zap.Uint64("tick", seq), zap.Uint64("applied", p.applied))
		return nil, false, nil, false
	}

	prev := p.state.Feed
	first := p.applied == 0
	p.applied = seq
	p.state.Feed = feed
	p.state.Thread = thread
	p.state.UpdatedAt = time.Now()
	p.broadcastLocked()
	return prev, first, p.state.Names, true
}

func (p *Poller) mergeNames(ctx context.Context, resolved NameCache) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	merged := p.state.Names.Merge(resolved)
	if len(merged) == len(p.state.Names) {
		return
	}
	p.state.Names = merged
	p.broadcastLocked()
}

// Snapshot returns a copy of the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}

// Subscribe returns a channel that receives the latest snapshot after each
// change. A slow reader only ever sees the newest undelivered snapshot.
func (p *Poller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

func (p *Poller) broadcastLocked() {
	if len(p.subs) == 0 {
		return
	}
	snap := p.state.clone()
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

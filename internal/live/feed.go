package live

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when subscribing to a feed that has been closed
var ErrClosed = errors.New("live feed is closed")

// Loader reads the full current value from the underlying source
type Loader[T any] func(ctx context.Context) (T, error)

// Feed is a multicast live sequence of whole values
//
// How it works:
//   - The first subscriber makes the feed warm: the loader runs and the value is cached
//   - Every subscriber immediately receives the cached value, then every later one
//   - Refresh re-runs the loader after a write and fans the result out
//   - When the last subscriber leaves, the feed stays warm for the idle timeout, then
//     drops the cached value so the next subscriber reads fresh state
//
// Each subscription buffers a single value. A newer value replaces an unread one,
// so slow observers never block writers and always end up on the latest state.
type Feed[T any] struct {
	load        Loader[T]
	idleTimeout time.Duration

	// refreshMu serializes load+publish so emissions follow commit order
	refreshMu sync.Mutex

	mu        sync.Mutex
	subs      map[uint64]*Subscription[T]
	nextID    uint64
	gen       uint64
	warm      bool
	latest    T
	idleTimer *time.Timer
	closed    bool
}

// NewFeed creates a cold feed
// A non-positive idleTimeout releases the cached value as soon as nobody listens
func NewFeed[T any](load Loader[T], idleTimeout time.Duration) *Feed[T] {
	return &Feed[T]{
		load:        load,
		idleTimeout: idleTimeout,
		subs:        make(map[uint64]*Subscription[T]),
	}
}

// Subscribe attaches a new observer
// The subscription ends when ctx is cancelled, Close is called, or the feed fails.
func (f *Feed[T]) Subscribe(ctx context.Context) (*Subscription[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	// Invalidate any pending idle expiry
	f.gen++
	f.stopIdleTimerLocked()
	warm := f.warm
	f.mu.Unlock()

	var loaded T
	if !warm {
		v, err := f.load(ctx)
		if err != nil {
			return nil, err
		}
		loaded = v
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}
	if !warm {
		f.latest = loaded
		f.warm = true
	}

	f.nextID++
	sub := &Subscription[T]{
		id:   f.nextID,
		feed: f,
		ch:   make(chan T, 1),
		done: make(chan struct{}),
	}
	f.subs[sub.id] = sub
	sub.offer(f.latest)
	sub.stop = context.AfterFunc(ctx, sub.Close)

	return sub, nil
}

// Refresh reloads the value and publishes it to every subscriber
// A cold feed is left alone; the next subscriber loads fresh state anyway.
// A loader error is terminal for the current subscribers and is returned.
func (f *Feed[T]) Refresh(ctx context.Context) error {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	f.mu.Lock()
	active := f.warm && !f.closed
	f.mu.Unlock()
	if !active {
		return nil
	}

	// The write being reflected has already committed; finish even if the caller gave up
	v, err := f.load(context.WithoutCancel(ctx))
	if err != nil {
		f.Fail(err)
		return err
	}

	f.Publish(v)
	return nil
}

// Publish fans out an already computed value
// It only updates the cache when the feed is warm.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.warm || f.closed {
		return
	}
	f.latest = v
	for _, sub := range f.subs {
		sub.offer(v)
	}
}

// Fail ends every current subscription with err and makes the feed cold
func (f *Feed[T]) Fail(err error) {
	f.mu.Lock()
	subs := f.detachAllLocked()
	f.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown(err)
	}
}

// Close ends every subscription and rejects new ones
func (f *Feed[T]) Close() {
	f.mu.Lock()
	f.closed = true
	subs := f.detachAllLocked()
	f.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown(nil)
	}
}

// Subscribers returns the number of attached observers
func (f *Feed[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Warm reports whether the feed currently caches a value
func (f *Feed[T]) Warm() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.warm
}

// detachAllLocked must be called with f.mu held
func (f *Feed[T]) detachAllLocked() []*Subscription[T] {
	subs := make([]*Subscription[T], 0, len(f.subs))
	for id, sub := range f.subs {
		subs = append(subs, sub)
		delete(f.subs, id)
	}
	f.gen++
	f.stopIdleTimerLocked()
	f.goColdLocked()
	return subs
}

func (f *Feed[T]) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[id]; !ok {
		return
	}
	delete(f.subs, id)
	if len(f.subs) > 0 || !f.warm || f.closed {
		return
	}

	f.gen++
	if f.idleTimeout <= 0 {
		f.goColdLocked()
		return
	}
	gen := f.gen
	f.idleTimer = time.AfterFunc(f.idleTimeout, func() { f.expire(gen) })
}

func (f *Feed[T]) expire(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gen != gen || len(f.subs) > 0 {
		return
	}
	f.idleTimer = nil
	f.goColdLocked()
}

func (f *Feed[T]) goColdLocked() {
	var zero T
	f.latest = zero
	f.warm = false
}

func (f *Feed[T]) stopIdleTimerLocked() {
	if f.idleTimer != nil {
		f.idleTimer.Stop()
		f.idleTimer = nil
	}
}

// Subscription is one observer's view of a Feed
type Subscription[T any] struct {
	id   uint64
	feed *Feed[T]
	ch   chan T
	done chan struct{}
	stop func() bool

	once sync.Once
	mu   sync.Mutex
	err  error
}

// Updates delivers values until the subscription ends, then is closed
func (s *Subscription[T]) Updates() <-chan T {
	return s.ch
}

// Done is closed when the subscription ends
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure that ended the subscription, or nil if it was
// cancelled or closed normally
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the observer. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.feed.remove(s.id)
	s.shutdown(nil)
}

// offer must be called with the feed lock held
func (s *Subscription[T]) offer(v T) {
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}

func (s *Subscription[T]) shutdown(err error) {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		close(s.ch)
	})
}

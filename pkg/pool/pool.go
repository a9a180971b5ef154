/*
Package pool maintains one A2A client per chat user.  A per-user
semaphore serializes both construction and use, so a user's requests
never interleave on the wire, and a cleanup pass reaps clients that
have sat idle past a deadline.
*/
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-bridge/pkg/a2a"
	"github.com/theapemachine/a2a-bridge/pkg/errors"
	"github.com/theapemachine/a2a-bridge/pkg/stores"
)

/*
Client is the slice of the A2A client surface the pool manages.  It is
satisfied by *a2a.Client; tests substitute lighter fakes.
*/
type Client interface {
	SubmitTask(ctx context.Context, params a2a.TaskSendParams) (*a2a.Task, error)
	GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error)
	HealthCheck(ctx context.Context) bool
	Session(id string) *a2a.TaskSession
	Close() error
}

/*
Config wires the pool to its collaborators.  DefaultEndpoint is used for
every user without a stored override; Prefs may be nil, in which case the
default always wins; Factory builds the client for a resolved endpoint
and defaults to a2a.NewClient.
*/
type Config struct {
	DefaultEndpoint string
	Prefs           stores.PreferenceStore
	Factory         func(endpoint string) Client
}

/*
entry is one user's slot.  The semaphore has capacity one and guards both
lazy construction and use of the client, so at most one request per user
is in flight at any time.  lastActive is monotonic: concurrent touches
never move it backwards.
*/
type entry struct {
	sem        chan struct{}
	client     Client
	endpoint   string
	lastActive atomic.Int64
}

func (entry *entry) touch() {
	now := time.Now().UnixNano()

	for {
		prev := entry.lastActive.Load()

		if now <= prev {
			return
		}

		if entry.lastActive.CompareAndSwap(prev, now) {
			return
		}
	}
}

/*
Pool hands out per-user A2A clients, building them on first use and
closing them on invalidation, idle eviction, or shutdown.
*/
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry
	cfg     Config
	closed  bool
}

func New(cfg Config) *Pool {
	if cfg.Factory == nil {
		cfg.Factory = func(endpoint string) Client {
			return a2a.NewClient(endpoint)
		}
	}

	return &Pool{
		entries: make(map[string]*entry),
		cfg:     cfg,
	}
}

/*
Acquire returns an exclusive lease on the user's client, constructing it
on first use.  It blocks while another request for the same user is in
flight; cancel ctx to give up waiting.  When the preference store fails,
no entry is left behind, so the next Acquire retries resolution.
*/
func (pool *Pool) Acquire(ctx context.Context, userID string) (*Lease, error) {
	for {
		pool.mu.Lock()

		if pool.closed {
			pool.mu.Unlock()
			return nil, &errors.PoolError{UserID: userID, Err: fmt.Errorf("pool is shut down")}
		}

		slot, ok := pool.entries[userID]

		if !ok {
			slot = &entry{sem: make(chan struct{}, 1)}
			pool.entries[userID] = slot
		}

		pool.mu.Unlock()

		select {
		case slot.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// The slot may have been invalidated or evicted while we waited.
		pool.mu.Lock()
		current := pool.entries[userID]
		pool.mu.Unlock()

		if current != slot {
			<-slot.sem
			continue
		}

		if slot.client == nil {
			endpoint, err := pool.resolve(ctx, userID)

			if err != nil {
				pool.mu.Lock()
				if pool.entries[userID] == slot {
					delete(pool.entries, userID)
				}
				pool.mu.Unlock()

				<-slot.sem
				return nil, &errors.PoolError{UserID: userID, Err: err}
			}

			slot.client = pool.cfg.Factory(endpoint)
			slot.endpoint = endpoint
			log.Info("client connected", "user_id", userID, "endpoint", endpoint)
		}

		slot.touch()
		return &Lease{entry: slot, userID: userID}, nil
	}
}

func (pool *Pool) resolve(ctx context.Context, userID string) (string, error) {
	if pool.cfg.Prefs == nil {
		return pool.cfg.DefaultEndpoint, nil
	}

	override, ok, err := pool.cfg.Prefs.Override(ctx, userID)

	if err != nil {
		return "", fmt.Errorf("loading server preference: %w", err)
	}

	if ok {
		return override, nil
	}

	return pool.cfg.DefaultEndpoint, nil
}

/*
Invalidate removes the user's entry and closes its client.  It waits for
any in-flight lease to be released first, so a client is never closed
under an active request.  Users whose preference changed call this to
force a reconnect against the new endpoint.
*/
func (pool *Pool) Invalidate(userID string) {
	pool.mu.Lock()
	slot, ok := pool.entries[userID]

	if ok {
		delete(pool.entries, userID)
	}

	pool.mu.Unlock()

	if !ok {
		return
	}

	// Wait out the in-flight lease, if any.  Waiters blocked on this
	// semaphore re-check membership after acquiring and start over on a
	// fresh entry.
	slot.sem <- struct{}{}

	if slot.client != nil {
		if err := slot.client.Close(); err != nil {
			log.Error("closing client", "user_id", userID, "error", err)
		}
	}

	<-slot.sem
	log.Info("client invalidated", "user_id", userID, "endpoint", slot.endpoint)
}

/*
EvictIdle closes and removes every client whose last activity is older
than the given age.  Entries with a request in flight are skipped; they
are by definition not idle.  Returns the number of clients evicted.
*/
func (pool *Pool) EvictIdle(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan).UnixNano()

	pool.mu.Lock()
	candidates := make(map[string]*entry, len(pool.entries))

	for userID, slot := range pool.entries {
		candidates[userID] = slot
	}

	pool.mu.Unlock()

	evicted := 0

	for userID, slot := range candidates {
		select {
		case slot.sem <- struct{}{}:
		default:
			continue
		}

		pool.mu.Lock()
		idle := pool.entries[userID] == slot && slot.lastActive.Load() <= cutoff

		if idle {
			delete(pool.entries, userID)
		}

		pool.mu.Unlock()
		<-slot.sem

		if !idle {
			continue
		}

		if slot.client != nil {
			if err := slot.client.Close(); err != nil {
				log.Error("closing idle client", "user_id", userID, "error", err)
			}
		}

		log.Info(
			"idle client evicted",
			"user_id", userID,
			"endpoint", slot.endpoint,
			"idle", time.Since(time.Unix(0, slot.lastActive.Load())).Round(time.Second),
		)

		evicted++
	}

	return evicted
}

/*
Size reports how many users currently hold a pooled entry.
*/
func (pool *Pool) Size() int {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return len(pool.entries)
}

/*
Info describes one pooled entry for introspection.
*/
type Info struct {
	UserID     string
	Endpoint   string
	LastActive time.Time
}

func (pool *Pool) Entries() []Info {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	infos := make([]Info, 0, len(pool.entries))

	for userID, slot := range pool.entries {
		infos = append(infos, Info{
			UserID:     userID,
			Endpoint:   slot.endpoint,
			LastActive: time.Unix(0, slot.lastActive.Load()),
		})
	}

	return infos
}

/*
Shutdown closes every pooled client, waiting for in-flight leases to be
released.  The pool refuses new Acquire calls from the moment Shutdown
starts.  Cancel ctx to stop waiting on stuck leases; clients not yet
reached are abandoned unclosed in that case.
*/
func (pool *Pool) Shutdown(ctx context.Context) error {
	pool.mu.Lock()

	if pool.closed {
		pool.mu.Unlock()
		return nil
	}

	pool.closed = true
	entries := pool.entries
	pool.entries = make(map[string]*entry)
	pool.mu.Unlock()

	for userID, slot := range entries {
		select {
		case slot.sem <- struct{}{}:
		case <-ctx.Done():
			log.Warn("shutdown gave up waiting for active clients", "error", ctx.Err())
			return ctx.Err()
		}

		if slot.client != nil {
			if err := slot.client.Close(); err != nil {
				log.Error("closing client", "user_id", userID, "error", err)
			}
		}

		<-slot.sem
	}

	log.Info("pool shut down", "clients", len(entries))
	return nil
}

/*
Lease is exclusive access to one user's client.  Release it as soon as
the request finishes; holding a lease blocks every other request for the
same user.  Release is idempotent.
*/
type Lease struct {
	entry  *entry
	userID string
	once   sync.Once
}

func (lease *Lease) Client() Client { return lease.entry.client }

func (lease *Lease) Endpoint() string { return lease.entry.endpoint }

func (lease *Lease) Release() {
	lease.once.Do(func() {
		lease.entry.touch()
		<-lease.entry.sem
	})
}

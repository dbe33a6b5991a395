package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"bedlog-backend/internal/bed"
)

// State is where the gate is in the sign-in lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateSessionError
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateSessionError:
		return "session-error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Snapshot is the gate's observable state. Session is only meaningful in
// StateAuthenticated, Err only in StateSessionError.
type Snapshot struct {
	State   State
	Session Session
	Err     error
}

// SessionProvider delivers session established (non-nil) and cleared (nil)
// events and can end the session.
type SessionProvider interface {
	OnSessionChange(fn func(*Identity)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// ErrRoleNotFound is returned by a RoleLookup when no role record exists.
var ErrRoleNotFound = errors.New("role record not found")

// RoleLookup resolves the role record of an identity.
type RoleLookup interface {
	LookupRole(ctx context.Context, uid string) (bed.Role, error)
}

// Gate owns the current session. It resolves the role of every established
// session and signs out credentials that have no role record.
type Gate struct {
	roles RoleLookup
	log   *zap.Logger

	mu       sync.Mutex
	provider SessionProvider
	current  Snapshot
	// generation invalidates role lookups started for an older event.
	generation uint64
	watchers   map[int]func(Snapshot)
	nextID     int
}

// NewGate creates an unauthenticated gate.
func NewGate(roles RoleLookup, log *zap.Logger) *Gate {
	return &Gate{
		roles:    roles,
		log:      log,
		watchers: make(map[int]func(Snapshot)),
	}
}

// Attach subscribes the gate to provider. detach always unsubscribes and
// returns the gate to Unauthenticated.
func (g *Gate) Attach(provider SessionProvider) (detach func()) {
	g.mu.Lock()
	g.provider = provider
	g.mu.Unlock()

	unsubscribe := provider.OnSessionChange(func(ident *Identity) {
		g.handle(context.Background(), ident)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			g.mu.Lock()
			g.provider = nil
			g.generation++
			g.mu.Unlock()
			g.set(Snapshot{State: StateUnauthenticated}, 0)
		})
	}
}

// State returns the current snapshot.
func (g *Gate) State() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Watch calls fn with the current snapshot and after every transition.
func (g *Gate) Watch(fn func(Snapshot)) (stop func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.watchers[id] = fn
	current := g.current
	g.mu.Unlock()

	fn(current)
	return func() {
		g.mu.Lock()
		delete(g.watchers, id)
		g.mu.Unlock()
	}
}

func (g *Gate) handle(ctx context.Context, ident *Identity) {
	g.mu.Lock()
	g.generation++
	gen := g.generation
	provider := g.provider
	g.mu.Unlock()

	if ident == nil {
		g.set(Snapshot{State: StateUnauthenticated}, gen)
		return
	}
	g.set(Snapshot{State: StateAuthenticating}, gen)

	role, err := g.roles.LookupRole(ctx, ident.UID)
	if err == nil {
		g.set(Snapshot{State: StateAuthenticated, Session: Session{
			UID:   ident.UID,
			Email: ident.Email,
			Role:  role,
			Claim: ident.Claim,
		}}, gen)
		return
	}

	g.log.Warn("signing out session without a usable role record",
		zap.String("uid", ident.UID), zap.Error(err))
	if provider != nil {
		if serr := provider.SignOut(ctx); serr != nil {
			g.set(Snapshot{State: StateSessionError, Err: fmt.Errorf("%w: sign-out failed: %v", ErrSessionInvalid, serr)}, gen)
			return
		}
	}
	g.set(Snapshot{State: StateUnauthenticated}, gen)
}

// set publishes s unless a newer event has superseded gen. gen 0 always
// publishes.
func (g *Gate) set(s Snapshot, gen uint64) {
	g.mu.Lock()
	if gen != 0 && gen != g.generation {
		g.mu.Unlock()
		return
	}
	g.current = s
	watchers := make([]func(Snapshot), 0, len(g.watchers))
	for _, fn := range g.watchers {
		watchers = append(watchers, fn)
	}
	g.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}
}

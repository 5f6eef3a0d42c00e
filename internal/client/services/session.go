package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/docmark/internal/client/client"
	"github.com/dmitrijs2005/docmark/internal/client/credentials"
	"github.com/dmitrijs2005/docmark/internal/client/models"
	"github.com/dmitrijs2005/docmark/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// SessionState is the authentication state of the client.
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticating  SessionState = "authenticating"
	StateAuthenticated   SessionState = "authenticated"
)

// SessionEvent describes one state change. From == To for a successful
// revalidation.
type SessionEvent struct {
	From SessionState
	To   SessionState
	User *models.User
}

// SessionListener is called after every transition, outside any lock.
type SessionListener func(ctx context.Context, ev SessionEvent)

// SessionService owns the authenticated identity and its durable restore.
//
// Contract:
//   - Initialize: restore a stored session optimistically and revalidate it.
//     Only a 401 tears the restored session down.
//   - Login, Signup: authenticate and persist token and user together.
//   - Logout: best-effort server logout, unconditional local teardown.
//   - Expire: teardown after the server rejected the token.
type SessionService interface {
	Initialize(ctx context.Context) error
	Login(ctx context.Context, email, password string) (*models.User, error)
	Signup(ctx context.Context, req models.SignupRequest) (*models.User, error)
	Logout(ctx context.Context) error
	Expire(ctx context.Context)
	ForgotPassword(ctx context.Context, email string) error

	State() SessionState
	Authenticated() bool
	User() *models.User
	TokenExpiresAt() *time.Time
	Subscribe(fn SessionListener) (unsubscribe func())
}

type sessionService struct {
	client client.Client
	store  credentials.Store
	log    logging.Logger

	mu        sync.RWMutex
	state     SessionState
	user      *models.User
	expiresAt *time.Time
	// epoch changes on every login and teardown so that a revalidation
	// settling afterwards cannot resurrect a stale session.
	epoch uint64

	lmu       sync.Mutex
	listeners map[int]SessionListener
	nextID    int
}

func NewSessionService(c client.Client, store credentials.Store, log logging.Logger) SessionService {
	if log == nil {
		log = logging.Discard()
	}
	return &sessionService{
		client:    c,
		store:     store,
		log:       log.With("component", "session"),
		state:     StateUnauthenticated,
		listeners: map[int]SessionListener{},
	}
}

func (s *sessionService) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *sessionService) Authenticated() bool { return s.State() == StateAuthenticated }

func (s *sessionService) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// TokenExpiresAt is informational only: the expiry the server announced at
// login, or the exp claim of a JWT bearer token. Nil when unknown.
func (s *sessionService) TokenExpiresAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expiresAt == nil {
		return nil
	}
	t := *s.expiresAt
	return &t
}

func (s *sessionService) Subscribe(fn SessionListener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *sessionService) emit(ctx context.Context, ev SessionEvent) {
	s.lmu.Lock()
	ls := make([]SessionListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		ls = append(ls, fn)
	}
	s.lmu.Unlock()

	for _, fn := range ls {
		fn(ctx, ev)
	}
}

// set switches state and returns the event to emit.
func (s *sessionService) set(to SessionState, u *models.User, exp *time.Time) SessionEvent {
	from := s.state
	s.state = to
	s.user = u
	s.expiresAt = exp
	var cp *models.User
	if u != nil {
		c := *u
		cp = &c
	}
	return SessionEvent{From: from, To: to, User: cp}
}

func (s *sessionService) Initialize(ctx context.Context) error {
	snap, err := s.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, credentials.ErrUnreadable) {
			return fmt.Errorf("load credentials: %w", err)
		}
		s.log.Warn(ctx, "stored credentials unreadable, discarding", "error", err)
		return s.discardStored(ctx)
	}

	if !snap.Complete() {
		if snap.Empty() {
			return nil
		}
		s.log.Warn(ctx, "partial credentials found, discarding")
		return s.discardStored(ctx)
	}

	var u models.User
	if err := json.Unmarshal(snap.User, &u); err != nil || u.ID == "" {
		s.log.Warn(ctx, "stored user snapshot invalid, discarding", "error", err)
		return s.discardStored(ctx)
	}

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	ev := s.set(StateAuthenticated, &u, tokenExpiry(snap.Token))
	s.mu.Unlock()
	s.emit(ctx, ev)

	s.revalidate(ctx, epoch, snap.Token)
	return nil
}

// revalidate refreshes the user snapshot. Any failure other than 401 keeps
// the optimistic session; there is no periodic re-check.
func (s *sessionService) revalidate(ctx context.Context, epoch uint64, token string) {
	fresh, err := s.client.CurrentUser(ctx)
	if err != nil {
		if client.KindOf(err) == client.KindUnauthorized {
			s.log.Info(ctx, "stored session rejected by server")
			s.teardown(ctx, epoch)
			return
		}
		s.log.Warn(ctx, "session revalidation failed, keeping restored session", "error", err)
		return
	}

	raw, err := json.Marshal(fresh)
	if err != nil {
		s.log.Error(ctx, "encode user snapshot", "error", err)
		return
	}

	s.mu.Lock()
	if s.epoch != epoch || s.state != StateAuthenticated {
		s.mu.Unlock()
		return
	}
	if err := s.store.Save(ctx, credentials.Snapshot{Token: token, User: raw}); err != nil {
		s.mu.Unlock()
		s.log.Warn(ctx, "persist refreshed user", "error", err)
		return
	}
	ev := s.set(StateAuthenticated, fresh, s.expiresAt)
	s.mu.Unlock()
	s.emit(ctx, ev)
}

func (s *sessionService) discardStored(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// begin moves Unauthenticated -> Authenticating.
func (s *sessionService) begin(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	switch s.state {
	case StateAuthenticated:
		s.mu.Unlock()
		return 0, ErrAlreadyAuthenticated
	case StateAuthenticating:
		s.mu.Unlock()
		return 0, ErrAuthInProgress
	}
	s.epoch++
	epoch := s.epoch
	ev := s.set(StateAuthenticating, nil, nil)
	s.mu.Unlock()
	s.emit(ctx, ev)
	return epoch, nil
}

func (s *sessionService) Login(ctx context.Context, email, password string) (*models.User, error) {
	epoch, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := s.client.Login(ctx, email, password)
	return s.complete(ctx, epoch, sess, err)
}

func (s *sessionService) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	epoch, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := s.client.Register(ctx, req)
	return s.complete(ctx, epoch, sess, err)
}

// complete settles an Authenticating attempt. The snapshot is saved under
// the lock so a concurrent Logout cannot interleave with it.
func (s *sessionService) complete(ctx context.Context, epoch uint64, sess *models.Session, err error) (*models.User, error) {
	var raw []byte
	if err == nil {
		raw, err = json.Marshal(sess.User)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		if err == nil {
			err = ErrAuthInProgress
		}
		return nil, err
	}
	if err == nil {
		if serr := s.store.Save(ctx, credentials.Snapshot{Token: sess.Token, User: raw}); serr != nil {
			err = fmt.Errorf("persist session: %w", serr)
		}
	}
	if err != nil {
		ev := s.set(StateUnauthenticated, nil, nil)
		s.mu.Unlock()
		s.emit(ctx, ev)
		return nil, err
	}

	exp := sess.ExpiresAt
	if exp == nil {
		exp = tokenExpiry(sess.Token)
	}
	u := sess.User
	ev := s.set(StateAuthenticated, &u, exp)
	s.mu.Unlock()

	s.log.Info(ctx, "logged in", "user_id", u.ID)
	s.emit(ctx, ev)
	return &u, nil
}

func (s *sessionService) Logout(ctx context.Context) error {
	tok, err := s.store.Token(ctx)
	if err == nil && tok != "" {
		if err := s.client.Logout(ctx); err != nil {
			s.log.Warn(ctx, "server logout failed", "error", err)
		}
	}

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()
	return s.teardown(ctx, epoch)
}

func (s *sessionService) Expire(ctx context.Context) {
	s.mu.RLock()
	active := s.state == StateAuthenticated
	epoch := s.epoch
	s.mu.RUnlock()
	if !active {
		return
	}
	s.log.Info(ctx, "session expired")
	_ = s.teardown(ctx, epoch)
}

// teardown clears durable credentials and moves to Unauthenticated, unless
// another login or teardown already superseded epoch.
func (s *sessionService) teardown(ctx context.Context, epoch uint64) error {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	s.epoch++
	err := s.store.Clear(ctx)
	if s.state == StateUnauthenticated {
		s.mu.Unlock()
		return err
	}
	ev := s.set(StateUnauthenticated, nil, nil)
	s.mu.Unlock()

	s.emit(ctx, ev)
	if err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func (s *sessionService) ForgotPassword(ctx context.Context, email string) error {
	return s.client.ForgotPassword(ctx, email)
}

// tokenExpiry reads the exp claim of a JWT without verifying it. Opaque
// tokens yield nil.
func tokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}

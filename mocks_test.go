package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/placesapp/go-auth"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fixedClock only moves when told to
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type seqIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

type seqCodes struct {
	mu    sync.Mutex
	codes []string
	n     int
}

func (s *seqCodes) NewCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	if s.n <= len(s.codes) {
		return s.codes[s.n-1]
	}
	return fmt.Sprintf("CODE%04d", s.n)
}

type seqRandom struct {
	mu sync.Mutex
	n  int
}

func (s *seqRandom) RandomString() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("refresh-token-%d", s.n), nil
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockMailer implements auth.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, mail auth.Mail) error {
	args := m.Called(ctx, mail)
	return args.Error(0)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// recordingSink keeps every activity event
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, e auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// memStore is an in-memory RepositoryManager. Transactions are serialized
// and rolled back by restoring a snapshot.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users          map[string]auth.User
	refreshTokens  map[string]auth.RefreshToken
	passwordResets map[string]auth.PasswordReset
	memberCodes    map[string]auth.MemberCode

	userUpdates int
	updateErr   error
}

func newMemStore() *memStore {
	return &memStore{
		users:          map[string]auth.User{},
		refreshTokens:  map[string]auth.RefreshToken{},
		passwordResets: map[string]auth.PasswordReset{},
		memberCodes:    map[string]auth.MemberCode{},
	}
}

var _ auth.RepositoryManager = (*memStore)(nil)

func (s *memStore) Validate() error                     { return nil }
func (s *memStore) Users() auth.Users                   { return memUsers{s} }
func (s *memStore) RefreshTokens() auth.RefreshTokens   { return memRefreshTokens{s} }
func (s *memStore) PasswordResets() auth.PasswordResets { return memPasswordResets{s} }
func (s *memStore) MemberCodes() auth.MemberCodes       { return memMemberCodes{s} }

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx auth.RepositoryManager) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	users          map[string]auth.User
	refreshTokens  map[string]auth.RefreshToken
	passwordResets map[string]auth.PasswordReset
	memberCodes    map[string]auth.MemberCode
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		users:          map[string]auth.User{},
		refreshTokens:  map[string]auth.RefreshToken{},
		passwordResets: map[string]auth.PasswordReset{},
		memberCodes:    map[string]auth.MemberCode{},
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.refreshTokens {
		snap.refreshTokens[k] = v
	}
	for k, v := range s.passwordResets {
		snap.passwordResets[k] = v
	}
	for k, v := range s.memberCodes {
		snap.memberCodes[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.refreshTokens = snap.refreshTokens
	s.passwordResets = snap.passwordResets
	s.memberCodes = snap.memberCodes
}

func notFound() error {
	return auth.ErrRecordNotFound.Clone()
}

type memUsers struct{ s *memStore }

func (r memUsers) GetByID(_ context.Context, id string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, notFound()
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = auth.NormalizeEmail(email)
	for _, u := range r.s.users {
		if u.EmailAddress == email {
			u := u
			return &u, nil
		}
	}
	return nil, notFound()
}

func (r memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r memUsers) Create(_ context.Context, record *auth.User) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	record.EmailAddress = auth.NormalizeEmail(record.EmailAddress)
	for _, u := range r.s.users {
		if u.EmailAddress == record.EmailAddress {
			return nil, auth.ErrRecordConflict.Clone()
		}
	}
	r.s.users[record.ID] = *record
	out := *record
	return &out, nil
}

func (r memUsers) Update(_ context.Context, record *auth.User) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updateErr != nil {
		return nil, r.s.updateErr
	}
	if _, ok := r.s.users[record.ID]; !ok {
		return nil, notFound()
	}
	r.s.userUpdates++
	r.s.users[record.ID] = *record
	out := *record
	return &out, nil
}

type memRefreshTokens struct{ s *memStore }

func (r memRefreshTokens) GetByValue(_ context.Context, value string) (*auth.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.refreshTokens {
		if t.Value == value {
			t := t
			return &t, nil
		}
	}
	return nil, notFound()
}

func (r memRefreshTokens) Create(_ context.Context, record *auth.RefreshToken) (*auth.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.refreshTokens[record.ID] = *record
	out := *record
	return &out, nil
}

func (r memRefreshTokens) Disable(_ context.Context, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, t := range r.s.refreshTokens {
		if t.Value == value {
			t.Disabled = true
			r.s.refreshTokens[id] = t
			return nil
		}
	}
	return notFound()
}

type memPasswordResets struct{ s *memStore }

func (r memPasswordResets) GetByCode(_ context.Context, code string) (*auth.PasswordReset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.passwordResets {
		if p.Code == code {
			p := p
			return &p, nil
		}
	}
	return nil, notFound()
}

func (r memPasswordResets) Create(_ context.Context, record *auth.PasswordReset) (*auth.PasswordReset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.passwordResets {
		if p.Code == record.Code {
			return nil, auth.ErrRecordConflict.Clone()
		}
	}
	r.s.passwordResets[record.ID] = *record
	out := *record
	return &out, nil
}

func (r memPasswordResets) Consume(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.passwordResets[id]
	if !ok {
		return notFound()
	}
	if p.IsConsumed {
		return auth.ErrAlreadyConsumed.Clone()
	}
	p.IsConsumed = true
	r.s.passwordResets[id] = p
	return nil
}

type memMemberCodes struct{ s *memStore }

func (r memMemberCodes) GetByCode(_ context.Context, code string) (*auth.MemberCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.memberCodes {
		if c.Code == code {
			c := c
			return &c, nil
		}
	}
	return nil, notFound()
}

func (r memMemberCodes) Create(_ context.Context, records ...*auth.MemberCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range records {
		r.s.memberCodes[rec.ID] = *rec
	}
	return nil
}

func (r memMemberCodes) Consume(_ context.Context, id, userID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.memberCodes[id]
	if !ok {
		return notFound()
	}
	if c.IsConsumed {
		return auth.ErrAlreadyConsumed.Clone()
	}
	c.IsConsumed = true
	c.UserID = &userID
	c.ConsumedAt = &at
	r.s.memberCodes[id] = c
	return nil
}

func (s *memStore) user(t *testing.T, id string) auth.User {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	require.True(t, ok, "user %s not stored", id)
	return u
}

func (s *memStore) memberCode(t *testing.T, code string) auth.MemberCode {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.memberCodes {
		if c.Code == code {
			return c
		}
	}
	t.Fatalf("member code %s not stored", code)
	return auth.MemberCode{}
}

func (s *memStore) resetsFor(userID string) []auth.PasswordReset {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.PasswordReset
	for _, p := range s.passwordResets {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

func (s *memStore) usersCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *memStore) updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userUpdates
}

// fixture wires every component over a memStore
type fixture struct {
	store       *memStore
	clock       *fixedClock
	ids         *seqIDs
	sink        *recordingSink
	mailer      *MockMailer
	passwords   *auth.BcryptStrategy
	codec       *auth.TokenCodec
	issuer      *auth.AccessTokenIssuer
	ledger      *auth.RefreshTokenLedger
	memberCodes *auth.MemberCodeActivation
	sessions    *auth.SessionOrchestrator
	resets      *auth.PasswordResetFlow
	access      *auth.UserAccessUpdater
	authorizer  *auth.Authorizer
	guard       *auth.Guard
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     newMemStore(),
		clock:     newFixedClock(),
		ids:       &seqIDs{prefix: "id"},
		sink:      &recordingSink{},
		mailer:    &MockMailer{},
		passwords: auth.NewBcryptStrategy(bcrypt.MinCost),
	}

	f.codec = auth.NewTokenCodec(testSecret, f.clock)
	f.issuer = auth.NewAccessTokenIssuer(f.codec, f.clock).WithIDGenerator(&seqIDs{prefix: "jti"})
	f.ledger = auth.NewRefreshTokenLedger(f.store, f.ids, &seqRandom{}, f.clock)

	f.memberCodes = auth.NewMemberCodeActivation(f.store).
		WithActivitySink(f.sink).
		WithLogger(testLogger{}).
		WithClock(f.clock).
		WithIDGenerator(f.ids)

	f.sessions = auth.NewSessionOrchestrator(f.store, f.passwords, f.issuer, f.ledger, f.memberCodes).
		WithActivitySink(f.sink).
		WithLogger(testLogger{}).
		WithClock(f.clock).
		WithIDGenerator(f.ids)

	f.resets = auth.NewPasswordResetFlow(f.store, f.mailer, f.passwords).
		WithActivitySink(f.sink).
		WithLogger(testLogger{}).
		WithClock(f.clock).
		WithIDGenerator(f.ids).
		WithCodeGenerator(&seqCodes{codes: []string{"RESET234"}})

	f.access = auth.NewUserAccessUpdater(f.store).
		WithActivitySink(f.sink).
		WithLogger(testLogger{}).
		WithClock(f.clock)

	f.authorizer = auth.NewAuthorizer(f.codec).WithLogger(testLogger{})
	f.guard = auth.NewGuard(f.authorizer)

	return f
}

// seedUser stores a user directly, bypassing registration
func (f *fixture) seedUser(t *testing.T, email, password string, role auth.Role, rank auth.Rank) *auth.User {
	t.Helper()
	now := f.clock.Now()
	u := &auth.User{
		ID:           f.ids.NewID(),
		EmailAddress: email,
		Role:         role,
		Rank:         rank,
		FirstName:    "Test",
		LastName:     "User",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if password != "" {
		hash, err := f.passwords.Hash(password)
		require.NoError(t, err)
		u.SetPassword(hash)
	}
	created, err := f.store.Users().Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func (f *fixture) seedMemberCode(t *testing.T, code string) {
	t.Helper()
	require.NoError(t, f.store.MemberCodes().Create(context.Background(), &auth.MemberCode{
		ID:        f.ids.NewID(),
		Code:      code,
		CreatedAt: f.clock.Now(),
	}))
}

func (f *fixture) tokenFor(t *testing.T, u *auth.User) string {
	t.Helper()
	token, err := f.issuer.Create(u)
	require.NoError(t, err)
	return token.Token
}

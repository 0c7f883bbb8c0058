package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/rbac-server/internal/apierror"
	"github.com/dtroode/rbac-server/internal/mocks"
	"github.com/dtroode/rbac-server/internal/model"
	"github.com/dtroode/rbac-server/internal/password"
	"github.com/dtroode/rbac-server/internal/testutil"
	"github.com/dtroode/rbac-server/internal/token"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type credentialFixture struct {
	dir      *Directory
	cred     *Credential
	stores   Stores
	jwt      *token.JWT
	notifier *mocks.Notifier
	clock    *fakeClock
}

func newCredentialFixture(t *testing.T) credentialFixture {
	t.Helper()
	lg := testutil.MakeNoopLogger()
	stores := memoryStores()
	hasher := password.NewBcrypt(bcrypt.MinCost)
	clock := &fakeClock{now: time.Now()}

	jwt := token.NewJWT(token.Config{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Hour,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    7 * 24 * time.Hour,
	}).WithClock(clock.Now)
	tokens := NewTokenService(jwt, stores.RefreshTokens, lg)
	tokens.now = clock.Now

	notifier := mocks.NewNotifier(t)
	cred := NewCredential(stores.Users, hasher, tokens, notifier, 0, lg)
	cred.now = clock.Now

	return credentialFixture{
		dir:      NewDirectory(stores, hasher, nil, lg),
		cred:     cred,
		stores:   stores,
		jwt:      jwt,
		notifier: notifier,
		clock:    clock,
	}
}

func TestCredential_HashAndVerify(t *testing.T) {
	t.Parallel()
	f := newCredentialFixture(t)

	hash, err := f.cred.HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, f.cred.VerifyPassword("s3cret", hash))
	assert.False(t, f.cred.VerifyPassword("wrong", hash))
}

func TestCredential_Authenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCredentialFixture(t)

	alice := mustUser(t, f.dir, "alice")
	inactive := mustUser(t, f.dir, "carol")
	_, err := f.dir.SetUserStatus(ctx, inactive.ID, false)
	require.NoError(t, err)
	_, err = f.dir.CreateUser(ctx, CreateUserInput{Email: "ext@example.com", Username: "ext", AuthMethod: model.AuthMethodApple})
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantUser bool
	}{
		{name: "valid", email: "ALICE@example.com ", password: "secret-alice", wantUser: true},
		{name: "wrong password", email: "alice@example.com", password: "nope"},
		{name: "unknown email", email: "ghost@example.com", password: "x"},
		{name: "inactive", email: "carol@example.com", password: "secret-carol"},
		{name: "external auth method", email: "ext@example.com", password: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			u, err := f.cred.Authenticate(ctx, tt.email, tt.password)
			require.NoError(t, err)
			if !tt.wantUser {
				assert.Nil(t, u)
				return
			}
			require.NotNil(t, u)
			assert.Equal(t, alice.ID, u.ID)
			assert.Empty(t, u.PasswordHash)
			assert.NotNil(t, u.LastLogin)
		})
	}

	stored, err := f.stores.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)
}

func TestCredential_LoginAndRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCredentialFixture(t)
	alice := mustUser(t, f.dir, "alice")

	_, _, err := f.cred.Login(ctx, "alice@example.com", "bad")
	assert.True(t, apierror.IsKind(err, apierror.KindUnauthenticated))

	user, pair, err := f.cred.Login(ctx, "alice@example.com", "secret-alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	access, err := f.cred.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, access.UserID)
	assert.Equal(t, "alice", access.Username)

	before, err := f.jwt.ParseRefreshToken(pair.RefreshToken)
	require.NoError(t, err)

	// an access token is not a refresh token
	_, err = f.cred.Refresh(ctx, pair.AccessToken)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidToken))

	f.clock.Advance(time.Minute)
	rotated, err := f.cred.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	after, err := f.jwt.ParseRefreshToken(rotated.RefreshToken)
	require.NoError(t, err)
	assert.True(t, after.ExpiresAt.After(before.ExpiresAt))

	stored, err := f.stores.RefreshTokens.GetByJTI(ctx, after.JTI)
	require.NoError(t, err)
	require.NotNil(t, stored.RotatedFromJTI)
	assert.Equal(t, before.JTI, *stored.RotatedFromJTI)

	// the presented token was consumed by the rotation
	_, err = f.cred.Refresh(ctx, pair.RefreshToken)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidToken))
}

func TestCredential_RefreshInactiveUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCredentialFixture(t)
	alice := mustUser(t, f.dir, "alice")

	_, pair, err := f.cred.Login(ctx, "alice@example.com", "secret-alice")
	require.NoError(t, err)

	_, err = f.dir.SetUserStatus(ctx, alice.ID, false)
	require.NoError(t, err)

	_, err = f.cred.Refresh(ctx, pair.RefreshToken)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidToken))
}

func TestCredential_Logout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCredentialFixture(t)
	mustUser(t, f.dir, "alice")

	_, pair, err := f.cred.Login(ctx, "alice@example.com", "secret-alice")
	require.NoError(t, err)

	require.NoError(t, f.cred.Logout(ctx, pair.RefreshToken))
	_, err = f.cred.Refresh(ctx, pair.RefreshToken)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidToken))

	assert.True(t, apierror.IsKind(f.cred.Logout(ctx, "garbage"), apierror.KindInvalidToken))
}

func TestCredential_PasswordReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCredentialFixture(t)
	alice := mustUser(t, f.dir, "alice")

	var issued string
	f.notifier.On("SendPasswordReset", mock.Anything, "alice@example.com", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { issued = args.String(2) }).
		Return(nil).Once()

	require.NoError(t, f.cred.RequestPasswordReset(ctx, " Alice@Example.com"))
	require.Len(t, issued, 2*resetTokenBytes)

	stored, err := f.stores.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordResetExpires)
	assert.WithinDuration(t, f.clock.Now().Add(DefaultResetTTL), *stored.PasswordResetExpires, time.Second)

	_, pair, err := f.cred.Login(ctx, "alice@example.com", "secret-alice")
	require.NoError(t, err)

	require.NoError(t, f.cred.CompletePasswordReset(ctx, issued, "brand-new"))

	err = f.cred.CompletePasswordReset(ctx, issued, "again")
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidOrExpiredToken))

	u, err := f.cred.Authenticate(ctx, "alice@example.com", "brand-new")
	require.NoError(t, err)
	assert.NotNil(t, u)

	// sessions issued before the reset are gone
	_, err = f.cred.Refresh(ctx, pair.RefreshToken)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidToken))
}

func TestCredential_PasswordResetConcurrentUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCredentialFixture(t)
	mustUser(t, f.dir, "alice")

	var issued string
	f.notifier.On("SendPasswordReset", mock.Anything, "alice@example.com", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { issued = args.String(2) }).
		Return(nil).Once()
	require.NoError(t, f.cred.RequestPasswordReset(ctx, "alice@example.com"))

	const workers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.cred.CompletePasswordReset(ctx, issued, "brand-new")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, apierror.IsKind(err, apierror.KindInvalidOrExpiredToken))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestCredential_PasswordResetExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCredentialFixture(t)
	mustUser(t, f.dir, "alice")

	var issued string
	f.notifier.On("SendPasswordReset", mock.Anything, "alice@example.com", mock.Anything).
		Run(func(args mock.Arguments) { issued = args.String(2) }).
		Return(assert.AnError).Once()

	// a notifier failure is not surfaced to the caller
	require.NoError(t, f.cred.RequestPasswordReset(ctx, "alice@example.com"))

	f.clock.Advance(DefaultResetTTL + time.Second)
	err := f.cred.CompletePasswordReset(ctx, issued, "brand-new")
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidOrExpiredToken))

	err = f.cred.CompletePasswordReset(ctx, issued, "")
	assert.True(t, apierror.IsKind(err, apierror.KindPasswordRequired))
}

func TestCredential_RequestPasswordResetUnknownEmail(t *testing.T) {
	t.Parallel()
	f := newCredentialFixture(t)

	require.NoError(t, f.cred.RequestPasswordReset(context.Background(), "ghost@example.com"))
	f.notifier.AssertNotCalled(t, "SendPasswordReset", mock.Anything, mock.Anything, mock.Anything)
}

func TestCredential_ChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newCredentialFixture(t)
	alice := mustUser(t, f.dir, "alice")
	ext, err := f.dir.CreateUser(ctx, CreateUserInput{Email: "ext@example.com", Username: "ext", AuthMethod: model.AuthMethodGoogle})
	require.NoError(t, err)

	err = f.cred.ChangePassword(ctx, alice.ID, "wrong", "next")
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidArgument))

	err = f.cred.ChangePassword(ctx, ext.ID, "", "next")
	assert.True(t, apierror.IsKind(err, apierror.KindPasswordRequired))

	require.NoError(t, f.cred.ChangePassword(ctx, alice.ID, "secret-alice", "next"))
	u, err := f.cred.Authenticate(ctx, "alice@example.com", "next")
	require.NoError(t, err)
	assert.NotNil(t, u)
}

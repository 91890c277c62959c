package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/mediastudio/internal/infra/backend"
)

type stubFetcher struct {
	resp *CurrentUserResponse
	err  error
}

func (f *stubFetcher) CurrentUser(ctx context.Context) (*CurrentUserResponse, error) {
	return f.resp, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSession_StartsUnauthenticated(t *testing.T) {
	session := NewSession(&stubFetcher{}, discardLogger())

	assert.False(t, session.IsAuthenticated())
	assert.False(t, session.IsAdmin())
	assert.True(t, session.User().IsAbsent())
}

func TestSession_RefreshSuccess(t *testing.T) {
	fetcher := &stubFetcher{resp: &CurrentUserResponse{Code: 200, User: &User{Username: "alice", Role: RoleAdmin}}}
	session := NewSession(fetcher, discardLogger())

	user, err := session.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.True(t, session.IsAuthenticated())
	assert.True(t, session.IsAdmin())
	assert.Equal(t, user, session.User().MustGet())
}

func TestSession_RefreshFailureClearsState(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *stubFetcher
		wantErr error
	}{
		{
			name:    "non-2xx",
			fetcher: &stubFetcher{err: &backend.RequestError{StatusCode: 401, Detail: "not logged in"}},
		},
		{
			name:    "network error",
			fetcher: &stubFetcher{err: &backend.NetworkError{Method: "GET", URL: "x", Err: errors.New("refused")}},
		},
		{
			name:    "missing user",
			fetcher: &stubFetcher{resp: &CurrentUserResponse{Code: 0}},
			wantErr: ErrMalformedUser,
		},
		{
			name:    "empty username",
			fetcher: &stubFetcher{resp: &CurrentUserResponse{Code: 0, User: &User{Role: RoleAdmin}}},
			wantErr: ErrMalformedUser,
		},
		{
			name:    "error code",
			fetcher: &stubFetcher{resp: &CurrentUserResponse{Code: 401, Msg: "expired", User: &User{Username: "alice"}}},
			wantErr: ErrRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSession(tt.fetcher, discardLogger())
			session.Set(User{Username: "previous", Role: RoleAdmin})
			require.True(t, session.IsAdmin())

			_, err := session.Refresh(context.Background())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			assert.False(t, session.IsAuthenticated())
			assert.False(t, session.IsAdmin())
			assert.True(t, session.User().IsAbsent())
		})
	}
}

func TestSession_LogoutRegardlessOfState(t *testing.T) {
	session := NewSession(&stubFetcher{}, discardLogger())

	// 未認証状態での logout
	session.Logout()
	assert.False(t, session.IsAuthenticated())
	assert.True(t, session.User().IsAbsent())

	session.Set(User{Username: "bob", Role: RoleUser})
	require.True(t, session.IsAuthenticated())

	session.Logout()
	assert.False(t, session.IsAuthenticated())
	assert.False(t, session.IsAdmin())
	assert.True(t, session.User().IsAbsent())
}

func TestSession_IsAdminOnlyForAdminRole(t *testing.T) {
	session := NewSession(&stubFetcher{}, discardLogger())

	for _, role := range []Role{RoleUser, "", "Admin", "administrator"} {
		session.Set(User{Username: "carol", Role: role})
		assert.False(t, session.IsAdmin(), "role %q", role)
	}

	session.Set(User{Username: "carol", Role: RoleAdmin})
	assert.True(t, session.IsAdmin())
}

func TestSession_RefreshDefaultsRole(t *testing.T) {
	session := NewSession(&stubFetcher{resp: &CurrentUserResponse{User: &User{Username: "dave"}}}, discardLogger())

	user, err := session.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RoleUser, user.Role)
	assert.False(t, session.IsAdmin())
}

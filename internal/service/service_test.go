package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/smartsplit/internal/auth"
	"github.com/mmynk/smartsplit/internal/middleware"
	"github.com/mmynk/smartsplit/internal/storage/sqlite"
	"github.com/mmynk/smartsplit/pkg/api"
	"github.com/mmynk/smartsplit/pkg/api/apiconnect"
)

type testEnv struct {
	auth   apiconnect.AuthServiceClient
	groups apiconnect.GroupServiceClient
	ledger apiconnect.LedgerServiceClient
	store  *sqlite.SQLiteStore
}

// newTestEnv serves all three services over httptest on a temp SQLite file,
// behind the real auth interceptor.
func newTestEnv(t *testing.T, opts ...LedgerOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store, bcrypt.MinCost)
	resetter := auth.NewPasswordResetter(store, authenticator, auth.LogNotifier{}, time.Hour)

	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(logger),
		middleware.RequireAuth(jwtManager, apiconnect.PublicProcedures...),
	)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewAuthServiceHandler(
		NewAuthService(authenticator, resetter, jwtManager, store, logger, WithExposedResetToken(true)), interceptors))
	mux.Handle(apiconnect.NewGroupServiceHandler(NewGroupService(store, logger), interceptors))
	mux.Handle(apiconnect.NewLedgerServiceHandler(NewLedgerService(store, logger, opts...), interceptors))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{
		auth:   apiconnect.NewAuthServiceClient(srv.Client(), srv.URL),
		groups: apiconnect.NewGroupServiceClient(srv.Client(), srv.URL),
		ledger: apiconnect.NewLedgerServiceClient(srv.Client(), srv.URL),
		store:  store,
	}
}

// session is a registered user and their bearer token.
type session struct {
	user  api.User
	token string
}

func (e *testEnv) register(t *testing.T, username string) session {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password-" + username,
	}))
	require.NoError(t, err)
	return session{user: resp.Msg.User, token: resp.Msg.Token}
}

func (e *testEnv) createGroup(t *testing.T, owner session, name string, members ...session) api.Group {
	t.Helper()
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.user.ID
	}
	resp, err := e.groups.CreateGroup(context.Background(), as(owner, &api.CreateGroupRequest{Name: name, MemberIDs: ids}))
	require.NoError(t, err)
	return resp.Msg.Group
}

// as builds a request authenticated as s.
func as[T any](s session, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+s.token)
	return req
}

func requireCode(t *testing.T, want connect.Code, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, connect.CodeOf(err), "error: %v", err)
}

package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/smartsplit/internal/auth"
	"github.com/mmynk/smartsplit/internal/metrics"
	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/pkg/api"
	"github.com/mmynk/smartsplit/pkg/api/apiconnect"
)

const (
	whoamiProcedure = "/test.v1.Echo/WhoAmI"
	publicProcedure = "/test.v1.Echo/Public"
	failProcedure   = "/test.v1.Echo/Fail"
)

func whoami(ctx context.Context, _ *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	return connect.NewResponse(&api.GetCurrentUserResponse{
		User: api.User{ID: GetUserID(ctx), Username: GetUsername(ctx)},
	}), nil
}

func fail(context.Context, *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("bad input"))
}

func newEchoServer(t *testing.T, interceptors ...connect.Interceptor) *httptest.Server {
	t.Helper()
	opts := []connect.HandlerOption{
		connect.WithCodec(apiconnect.Codec{}),
		connect.WithInterceptors(interceptors...),
	}
	mux := http.NewServeMux()
	mux.Handle(whoamiProcedure, connect.NewUnaryHandler(whoamiProcedure, whoami, opts...))
	mux.Handle(publicProcedure, connect.NewUnaryHandler(publicProcedure, whoami, opts...))
	mux.Handle(failProcedure, connect.NewUnaryHandler(failProcedure, fail, opts...))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, procedure, authHeader string) (*api.GetCurrentUserResponse, error) {
	t.Helper()
	client := connect.NewClient[api.GetCurrentUserRequest, api.GetCurrentUserResponse](
		srv.Client(), srv.URL+procedure, connect.WithCodec(apiconnect.Codec{}),
	)
	req := connect.NewRequest(&api.GetCurrentUserRequest{})
	if authHeader != "" {
		req.Header().Set("Authorization", authHeader)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("secret", time.Hour)
	user := models.NewUser("alice", "alice@example.com", "")
	token, err := jwtManager.Generate(user)
	require.NoError(t, err)

	srv := newEchoServer(t, RequireAuth(jwtManager, publicProcedure))

	t.Run("valid token", func(t *testing.T) {
		msg, err := call(t, srv, whoamiProcedure, "Bearer "+token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, msg.User.ID)
		assert.Equal(t, "alice", msg.User.Username)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := call(t, srv, whoamiProcedure, "")
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("wrong scheme", func(t *testing.T) {
		_, err := call(t, srv, whoamiProcedure, "Basic "+token)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := call(t, srv, whoamiProcedure, "Bearer nope")
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("public procedure", func(t *testing.T) {
		msg, err := call(t, srv, publicProcedure, "")
		require.NoError(t, err)
		assert.Empty(t, msg.User.ID)
	})
}

func TestLoggingInterceptorSeesAuthenticatedUser(t *testing.T) {
	jwtManager := auth.NewJWTManager("secret", time.Hour)
	user := models.NewUser("bob", "bob@example.com", "")
	token, err := jwtManager.Generate(user)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	srv := newEchoServer(t, LoggingInterceptor(logger), RequireAuth(jwtManager, publicProcedure, failProcedure))

	_, err = call(t, srv, whoamiProcedure, "Bearer "+token)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "RPC ok")
	assert.Contains(t, buf.String(), "user_id="+user.ID)

	buf.Reset()
	_, err = call(t, srv, failProcedure, "")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "code=invalid_argument")
}

func TestMetricsInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := newEchoServer(t, MetricsInterceptor(metrics.New(reg)))

	_, err := call(t, srv, publicProcedure, "")
	require.NoError(t, err)
	_, err = call(t, srv, failProcedure, "")
	require.Error(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	codes := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() != "smartsplit_rpc_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "code" {
					codes[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"ok": 1, "invalid_argument": 1}, codes)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "path=/healthz")
	assert.Contains(t, buf.String(), "status=418")
}

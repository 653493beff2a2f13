package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/smartsplit/pkg/api"
)

const AuthServiceName = "smartsplit.v1.AuthService"

const (
	AuthServiceRegisterProcedure       = "/smartsplit.v1.AuthService/Register"
	AuthServiceLoginProcedure          = "/smartsplit.v1.AuthService/Login"
	AuthServiceForgotPasswordProcedure = "/smartsplit.v1.AuthService/ForgotPassword"
	AuthServiceResetPasswordProcedure  = "/smartsplit.v1.AuthService/ResetPassword"
	AuthServiceGetCurrentUserProcedure = "/smartsplit.v1.AuthService/GetCurrentUser"
)

// PublicProcedures can be called without a session token.
var PublicProcedures = []string{
	AuthServiceRegisterProcedure,
	AuthServiceLoginProcedure,
	AuthServiceForgotPasswordProcedure,
	AuthServiceResetPasswordProcedure,
	LedgerServicePreviewSplitProcedure,
}

// AuthServiceHandler is implemented by the account service.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error)
	Login(context.Context, *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error)
	ForgotPassword(context.Context, *connect.Request[api.ForgotPasswordRequest]) (*connect.Response[api.ForgotPasswordResponse], error)
	ResetPassword(context.Context, *connect.Request[api.ResetPasswordRequest]) (*connect.Response[api.ResetPasswordResponse], error)
	GetCurrentUser(context.Context, *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error)
}

// NewAuthServiceHandler returns the path to mount the service on and its handler.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(AuthServiceRegisterProcedure, connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...))
	mux.Handle(AuthServiceLoginProcedure, connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...))
	mux.Handle(AuthServiceForgotPasswordProcedure, connect.NewUnaryHandler(AuthServiceForgotPasswordProcedure, svc.ForgotPassword, opts...))
	mux.Handle(AuthServiceResetPasswordProcedure, connect.NewUnaryHandler(AuthServiceResetPasswordProcedure, svc.ResetPassword, opts...))
	mux.Handle(AuthServiceGetCurrentUserProcedure, connect.NewUnaryHandler(AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts...))
	return "/" + AuthServiceName + "/", mux
}

// AuthServiceClient calls AuthService over HTTP.
type AuthServiceClient interface {
	AuthServiceHandler
}

type authServiceClient struct {
	register       *connect.Client[api.RegisterRequest, api.RegisterResponse]
	login          *connect.Client[api.LoginRequest, api.LoginResponse]
	forgotPassword *connect.Client[api.ForgotPasswordRequest, api.ForgotPasswordResponse]
	resetPassword  *connect.Client[api.ResetPasswordRequest, api.ResetPasswordResponse]
	getCurrentUser *connect.Client[api.GetCurrentUserRequest, api.GetCurrentUserResponse]
}

// NewAuthServiceClient builds a client for the service at baseURL.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &authServiceClient{
		register:       connect.NewClient[api.RegisterRequest, api.RegisterResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:          connect.NewClient[api.LoginRequest, api.LoginResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
		forgotPassword: connect.NewClient[api.ForgotPasswordRequest, api.ForgotPasswordResponse](httpClient, baseURL+AuthServiceForgotPasswordProcedure, opts...),
		resetPassword:  connect.NewClient[api.ResetPasswordRequest, api.ResetPasswordResponse](httpClient, baseURL+AuthServiceResetPasswordProcedure, opts...),
		getCurrentUser: connect.NewClient[api.GetCurrentUserRequest, api.GetCurrentUserResponse](httpClient, baseURL+AuthServiceGetCurrentUserProcedure, opts...),
	}
}

func (c *authServiceClient) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *authServiceClient) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *authServiceClient) ForgotPassword(ctx context.Context, req *connect.Request[api.ForgotPasswordRequest]) (*connect.Response[api.ForgotPasswordResponse], error) {
	return c.forgotPassword.CallUnary(ctx, req)
}

func (c *authServiceClient) ResetPassword(ctx context.Context, req *connect.Request[api.ResetPasswordRequest]) (*connect.Response[api.ResetPasswordResponse], error) {
	return c.resetPassword.CallUnary(ctx, req)
}

func (c *authServiceClient) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}

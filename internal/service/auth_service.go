// Package service implements the Connect handlers. Each handler validates
// its request, delegates to the domain packages and maps their errors onto
// Connect codes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/smartsplit/internal/auth"
	"github.com/mmynk/smartsplit/internal/middleware"
	"github.com/mmynk/smartsplit/internal/storage"
	"github.com/mmynk/smartsplit/pkg/api"
	"github.com/mmynk/smartsplit/pkg/api/apiconnect"
)

const (
	forgotPasswordMessage = "If that email is registered, a password reset token has been sent."
	resetPasswordMessage  = "Password has been reset."
)

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	authenticator    auth.Authenticator
	resetter         *auth.PasswordResetter
	jwtManager       *auth.JWTManager
	users            storage.UserStore
	exposeResetToken bool
	logger           *slog.Logger
	now              func() time.Time
}

var _ apiconnect.AuthServiceHandler = (*AuthService)(nil)

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithExposedResetToken returns reset tokens in ForgotPassword responses.
// Only for deployments without mail delivery.
func WithExposedResetToken(expose bool) AuthOption {
	return func(s *AuthService) { s.exposeResetToken = expose }
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	authenticator auth.Authenticator,
	resetter *auth.PasswordResetter,
	jwtManager *auth.JWTManager,
	users storage.UserStore,
	logger *slog.Logger,
	opts ...AuthOption,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AuthService{
		authenticator: authenticator,
		resetter:      resetter,
		jwtManager:    jwtManager,
		users:         users,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new user account and signs the user in.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "Register rejected", err)
	}

	user, err := s.authenticator.Register(ctx, req.Msg.Username, req.Msg.Email, req.Msg.Password)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "Registration failed", err, "email", req.Msg.Email)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "Failed to generate token", err, "user_id", user.ID)
	}

	s.logger.InfoContext(ctx, "User registered", "user_id", user.ID, "username", user.Username)
	return connect.NewResponse(&api.RegisterResponse{
		User:  toAPIUser(user),
		Token: token,
	}), nil
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "Login rejected", err)
	}

	user, err := s.authenticator.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "Login failed", err, "email", req.Msg.Email)
	}

	issuedAt := s.now()
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "Failed to generate token", err, "user_id", user.ID)
	}

	s.logger.InfoContext(ctx, "User logged in", "user_id", user.ID)
	return connect.NewResponse(&api.LoginResponse{
		User:      toAPIUser(user),
		Token:     token,
		ExpiresAt: issuedAt.Add(s.jwtManager.TokenDuration()).Unix(),
	}), nil
}

// ForgotPassword issues a reset token. The response is the same whether or
// not the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, req *connect.Request[api.ForgotPasswordRequest]) (*connect.Response[api.ForgotPasswordResponse], error) {
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "ForgotPassword rejected", err)
	}

	token, err := s.resetter.RequestReset(ctx, req.Msg.Email)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "Password reset request failed", err)
	}

	resp := &api.ForgotPasswordResponse{Message: forgotPasswordMessage}
	if s.exposeResetToken {
		resp.ResetToken = token
	}
	return connect.NewResponse(resp), nil
}

// ResetPassword sets a new password using a token from ForgotPassword.
func (s *AuthService) ResetPassword(ctx context.Context, req *connect.Request[api.ResetPasswordRequest]) (*connect.Response[api.ResetPasswordResponse], error) {
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "ResetPassword rejected", err)
	}

	if err := s.resetter.Reset(ctx, req.Msg.Token, req.Msg.NewPassword); err != nil {
		return nil, toConnectError(ctx, s.logger, "Password reset failed", err)
	}

	s.logger.InfoContext(ctx, "Password reset completed")
	return connect.NewResponse(&api.ResetPasswordResponse{Message: resetPasswordMessage}), nil
}

// GetCurrentUser returns the authenticated user's account.
func (s *AuthService) GetCurrentUser(ctx context.Context, _ *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "GetCurrentUser failed", err, "user_id", userID)
	}
	if user == nil {
		return nil, toConnectError(ctx, s.logger, "GetCurrentUser failed", fmt.Errorf("user %s: %w", userID, storage.ErrNotFound), "user_id", userID)
	}

	return connect.NewResponse(&api.GetCurrentUserResponse{User: toAPIUser(user)}), nil
}

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call.
// Client errors are logged at Warn and internal ones at Error.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure
			ctx, identity := withIdentitySlot(ctx)

			resp, err := next(ctx, req)

			userID := identity.userID
			duration := time.Since(start).Milliseconds()
			if err == nil {
				logger.Info("RPC ok",
					"procedure", procedure,
					"user_id", userID,
					"duration_ms", duration,
				)
				return resp, nil
			}

			var connectErr *connect.Error
			if errors.As(err, &connectErr) && connectErr.Code() != connect.CodeInternal && connectErr.Code() != connect.CodeUnknown {
				logger.Warn("RPC error",
					"procedure", procedure,
					"code", connectErr.Code().String(),
					"error", connectErr.Message(),
					"user_id", userID,
					"duration_ms", duration,
				)
			} else {
				logger.Error("RPC error",
					"procedure", procedure,
					"code", connect.CodeOf(err).String(),
					"error", err,
					"user_id", userID,
					"duration_ms", duration,
				)
			}
			return resp, err
		}
	}
}

// identitySlot lets an outer interceptor learn the user that RequireAuth
// resolved further down the chain.
type identitySlot struct {
	userID string
}

const identitySlotKey contextKey = "identity_slot"

func withIdentitySlot(ctx context.Context) (context.Context, *identitySlot) {
	if slot, ok := ctx.Value(identitySlotKey).(*identitySlot); ok {
		return ctx, slot
	}
	slot := &identitySlot{userID: GetUserID(ctx)}
	return context.WithValue(ctx, identitySlotKey, slot), slot
}

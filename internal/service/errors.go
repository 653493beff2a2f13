package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/mmynk/smartsplit/internal/auth"
	"github.com/mmynk/smartsplit/internal/idempotency"
	"github.com/mmynk/smartsplit/internal/ledger"
	"github.com/mmynk/smartsplit/internal/storage"
)

var errUnknownUser = errors.New("unknown user")

// codeOf maps domain errors onto Connect codes.
func codeOf(err error) connect.Code {
	var connectErr *connect.Error
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &connectErr):
		return connectErr.Code()
	case errors.As(err, &validationErrs):
		return connect.CodeInvalidArgument
	case ledger.IsValidation(err),
		errors.Is(err, errUnknownUser),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidResetToken):
		return connect.CodeInvalidArgument
	case errors.Is(err, ledger.ErrGroupNotFound), errors.Is(err, storage.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, ledger.ErrNotMember):
		return connect.CodePermissionDenied
	case errors.Is(err, auth.ErrEmailExists),
		errors.Is(err, auth.ErrUsernameExists),
		errors.Is(err, idempotency.ErrKeyReused):
		return connect.CodeAlreadyExists
	case errors.Is(err, idempotency.ErrInFlight):
		return connect.CodeAborted
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken):
		return connect.CodeUnauthenticated
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	default:
		return connect.CodeInternal
	}
}

// toConnectError logs err and converts it for the wire. Client errors keep
// their message; internal errors are logged in full and sent generically.
func toConnectError(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	code := codeOf(err)
	attrs = append(attrs, "code", code.String(), "error", err)
	if code == connect.CodeInternal {
		logger.ErrorContext(ctx, msg, attrs...)
		return connect.NewError(code, errors.New("internal error"))
	}
	logger.WarnContext(ctx, msg, attrs...)
	return connect.NewError(code, err)
}

var (
	errBothParticipantsAndSplits = fmt.Errorf("%w: give either participants or splits, not both", ledger.ErrSplitMismatch)
	errParticipantsNeedEqual     = fmt.Errorf("%w: participants can only be used with equal splits", ledger.ErrInvalidSplitType)
)

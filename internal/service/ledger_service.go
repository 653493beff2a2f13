package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/smartsplit/internal/calculator"
	"github.com/mmynk/smartsplit/internal/idempotency"
	"github.com/mmynk/smartsplit/internal/ledger"
	"github.com/mmynk/smartsplit/internal/metrics"
	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/internal/money"
	"github.com/mmynk/smartsplit/internal/storage"
	"github.com/mmynk/smartsplit/pkg/api"
	"github.com/mmynk/smartsplit/pkg/api/apiconnect"
)

const recordExpenseOperation = "record_expense"

// LedgerService implements the Connect LedgerService.
type LedgerService struct {
	store   storage.Store
	ledger  *ledger.Ledger
	guard   *idempotency.Guard
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ apiconnect.LedgerServiceHandler = (*LedgerService)(nil)

// LedgerOption configures a LedgerService.
type LedgerOption func(*LedgerService)

// WithIdempotency enables Idempotency-Key handling for RecordExpense.
func WithIdempotency(guard *idempotency.Guard) LedgerOption {
	return func(s *LedgerService) { s.guard = guard }
}

// WithMetrics records ledger metrics on m.
func WithMetrics(m *metrics.Metrics) LedgerOption {
	return func(s *LedgerService) { s.metrics = m }
}

// NewLedgerService creates a LedgerService backed by store.
func NewLedgerService(store storage.Store, logger *slog.Logger, opts ...LedgerOption) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &LedgerService{
		store:  store,
		ledger: ledger.New(store),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordExpense records an expense for the caller. With an Idempotency-Key
// header a retried request returns the expense written the first time.
func (s *LedgerService) RecordExpense(ctx context.Context, req *connect.Request[api.RecordExpenseRequest]) (*connect.Response[api.RecordExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	msg := req.Msg
	if err := validateRequest(msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "RecordExpense rejected", err)
	}

	splitType := models.SplitType(msg.SplitType)
	splits, err := buildSplits(splitType, msg.Amount, msg.Splits, msg.Participants)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "RecordExpense rejected", err, "group_id", msg.GroupID)
	}

	payerID := msg.PayerID
	if payerID == "" {
		payerID = userID
	}
	input := ledger.ExpenseInput{
		GroupID:     msg.GroupID,
		PayerID:     payerID,
		Amount:      msg.Amount,
		Description: strings.TrimSpace(msg.Description),
		SplitType:   splitType,
		Splits:      splits,
		ActorID:     userID,
	}

	clientKey := strings.TrimSpace(req.Header().Get(apiconnect.IdempotencyKeyHeader))
	if s.guard == nil || clientKey == "" {
		expense, err := s.record(ctx, input)
		if err != nil {
			return nil, err
		}
		return connect.NewResponse(&api.RecordExpenseResponse{Expense: toAPIExpense(expense)}), nil
	}

	expense, err := s.recordOnce(ctx, idempotency.Key(recordExpenseOperation, userID, clientKey), msg, input)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.RecordExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

func (s *LedgerService) record(ctx context.Context, input ledger.ExpenseInput) (*models.Expense, error) {
	written, err := s.ledger.RecordExpense(ctx, input)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "RecordExpense failed", err,
			"group_id", input.GroupID, "user_id", input.ActorID)
	}
	s.metrics.IncExpenseRecorded(string(input.SplitType))
	s.logger.InfoContext(ctx, "Expense recorded",
		"expense_id", written.ID,
		"group_id", written.GroupID,
		"amount", written.Amount.String(),
		"splits", len(written.Splits),
	)

	// Re-read so the response carries usernames.
	expense, err := s.store.GetExpense(ctx, written.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to reload recorded expense", "expense_id", written.ID, "error", err)
		return written, nil
	}
	return expense, nil
}

func (s *LedgerService) recordOnce(ctx context.Context, key string, msg *api.RecordExpenseRequest, input ledger.ExpenseInput) (*models.Expense, error) {
	hash, err := idempotency.HashRequest(msg)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "RecordExpense failed", err)
	}

	prior, err := s.guard.Claim(ctx, key, hash)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "RecordExpense idempotency check failed", err, "idempotency_key", key)
	}
	if prior != nil {
		expense, err := s.store.GetExpense(ctx, prior.ResultID)
		if err != nil {
			return nil, toConnectError(ctx, s.logger, "RecordExpense replay failed", err, "expense_id", prior.ResultID)
		}
		s.metrics.IncIdempotentReplay()
		s.logger.InfoContext(ctx, "Expense replayed from idempotency key", "expense_id", expense.ID)
		return expense, nil
	}

	expense, err := s.record(ctx, input)
	if err != nil {
		// The write did not happen, so the client may retry with the same key.
		if relErr := s.guard.Release(context.WithoutCancel(ctx), key); relErr != nil {
			s.logger.WarnContext(ctx, "Failed to release idempotency key", "error", relErr)
		}
		return nil, err
	}
	if err := s.guard.Complete(context.WithoutCancel(ctx), key, hash, expense.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to complete idempotency key", "expense_id", expense.ID, "error", err)
	}
	return expense, nil
}

// ListExpenses returns a group's expenses newest first.
func (s *LedgerService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "ListExpenses rejected", err)
	}

	members, err := s.store.ListMembers(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "ListExpenses failed", ledger.StorageFailure("failed to list members", err))
	}
	if err := requireMember(req.Msg.GroupID, members, userID); err != nil {
		return nil, toConnectError(ctx, s.logger, "ListExpenses rejected", err, "group_id", req.Msg.GroupID)
	}

	expenses, err := s.store.ListExpenses(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "ListExpenses failed", ledger.StorageFailure("failed to list expenses", err))
	}

	out := make([]api.Expense, len(expenses))
	for i := range expenses {
		out[i] = toAPIExpense(&expenses[i])
	}
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// GetBalances returns every member's totals and net balance.
func (s *LedgerService) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "GetBalances rejected", err)
	}

	balances, err := s.balances(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}

	out := make([]api.Balance, len(balances))
	for i, b := range balances {
		out[i] = toAPIBalance(b)
	}
	return connect.NewResponse(&api.GetBalancesResponse{Balances: out}), nil
}

// OptimizeSettlements returns the transfers that clear every balance.
func (s *LedgerService) OptimizeSettlements(ctx context.Context, req *connect.Request[api.OptimizeSettlementsRequest]) (*connect.Response[api.OptimizeSettlementsResponse], error) {
	if err := validateRequest(req.Msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "OptimizeSettlements rejected", err)
	}

	balances, err := s.balances(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}

	settlements, err := calculator.OptimizeSettlements(balances)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "OptimizeSettlements failed", err, "group_id", req.Msg.GroupID)
	}
	s.metrics.ObserveSettlementPlan(len(settlements))

	out := make([]api.Settlement, len(settlements))
	for i, st := range settlements {
		out[i] = toAPISettlement(st)
	}
	return connect.NewResponse(&api.OptimizeSettlementsResponse{Settlements: out}), nil
}

// balances loads one snapshot of the group and reduces it, after checking
// that the caller is a member of that same snapshot.
func (s *LedgerService) balances(ctx context.Context, groupID string) ([]models.Balance, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.store.LoadGroupLedger(ctx, groupID)
	if err != nil {
		if !errors.Is(err, ledger.ErrStorageFailure) {
			err = ledger.StorageFailure("failed to load group ledger", err)
		}
		return nil, toConnectError(ctx, s.logger, "Balance read failed", err, "group_id", groupID)
	}
	if err := requireMember(groupID, snapshot.Members, userID); err != nil {
		return nil, toConnectError(ctx, s.logger, "Balance read rejected", err, "group_id", groupID, "user_id", userID)
	}

	balances, err := calculator.ComputeLedgerBalances(snapshot)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "Balance computation failed", err, "group_id", groupID)
	}
	return balances, nil
}

// PreviewSplit computes the shares an expense would get without recording it.
func (s *LedgerService) PreviewSplit(ctx context.Context, req *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error) {
	msg := req.Msg
	if err := validateRequest(msg); err != nil {
		return nil, toConnectError(ctx, s.logger, "PreviewSplit rejected", err)
	}

	splits, err := buildSplits(models.SplitType(msg.SplitType), msg.Amount, msg.Splits, msg.Participants)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "PreviewSplit rejected", err)
	}
	return connect.NewResponse(&api.PreviewSplitResponse{Splits: toAPISplits(splits)}), nil
}

// buildSplits turns request shares into split rows. Equal splits may name
// participants instead of splits; the two lists must not both be given.
func buildSplits(splitType models.SplitType, amount money.Money, inputs []api.SplitInput, participants []string) ([]models.Split, error) {
	shares := make([]calculator.Share, 0, len(inputs)+len(participants))
	switch {
	case len(participants) > 0 && len(inputs) > 0:
		return nil, errBothParticipantsAndSplits
	case len(participants) > 0:
		if splitType != models.SplitEqual {
			return nil, errParticipantsNeedEqual
		}
		for _, id := range participants {
			shares = append(shares, calculator.Share{UserID: id})
		}
	default:
		for _, in := range inputs {
			shares = append(shares, calculator.Share{UserID: in.UserID, Amount: in.Amount, Percent: in.Percent})
		}
	}
	return calculator.BuildSplits(splitType, amount, shares)
}

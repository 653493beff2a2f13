package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/smartsplit/pkg/api"
)

const LedgerServiceName = "smartsplit.v1.LedgerService"

const (
	LedgerServiceRecordExpenseProcedure       = "/smartsplit.v1.LedgerService/RecordExpense"
	LedgerServiceListExpensesProcedure        = "/smartsplit.v1.LedgerService/ListExpenses"
	LedgerServiceGetBalancesProcedure         = "/smartsplit.v1.LedgerService/GetBalances"
	LedgerServiceOptimizeSettlementsProcedure = "/smartsplit.v1.LedgerService/OptimizeSettlements"
	LedgerServicePreviewSplitProcedure        = "/smartsplit.v1.LedgerService/PreviewSplit"
)

// IdempotencyKeyHeader lets clients retry RecordExpense safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// LedgerServiceHandler is implemented by the ledger service.
type LedgerServiceHandler interface {
	RecordExpense(context.Context, *connect.Request[api.RecordExpenseRequest]) (*connect.Response[api.RecordExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error)
	GetBalances(context.Context, *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error)
	OptimizeSettlements(context.Context, *connect.Request[api.OptimizeSettlementsRequest]) (*connect.Response[api.OptimizeSettlementsResponse], error)
	PreviewSplit(context.Context, *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error)
}

// NewLedgerServiceHandler returns the path to mount the service on and its handler.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(LedgerServiceRecordExpenseProcedure, connect.NewUnaryHandler(LedgerServiceRecordExpenseProcedure, svc.RecordExpense, opts...))
	mux.Handle(LedgerServiceListExpensesProcedure, connect.NewUnaryHandler(LedgerServiceListExpensesProcedure, svc.ListExpenses, opts...))
	mux.Handle(LedgerServiceGetBalancesProcedure, connect.NewUnaryHandler(LedgerServiceGetBalancesProcedure, svc.GetBalances, opts...))
	mux.Handle(LedgerServiceOptimizeSettlementsProcedure, connect.NewUnaryHandler(LedgerServiceOptimizeSettlementsProcedure, svc.OptimizeSettlements, opts...))
	mux.Handle(LedgerServicePreviewSplitProcedure, connect.NewUnaryHandler(LedgerServicePreviewSplitProcedure, svc.PreviewSplit, opts...))
	return "/" + LedgerServiceName + "/", mux
}

// LedgerServiceClient calls LedgerService over HTTP.
type LedgerServiceClient interface {
	LedgerServiceHandler
}

type ledgerServiceClient struct {
	recordExpense       *connect.Client[api.RecordExpenseRequest, api.RecordExpenseResponse]
	listExpenses        *connect.Client[api.ListExpensesRequest, api.ListExpensesResponse]
	getBalances         *connect.Client[api.GetBalancesRequest, api.GetBalancesResponse]
	optimizeSettlements *connect.Client[api.OptimizeSettlementsRequest, api.OptimizeSettlementsResponse]
	previewSplit        *connect.Client[api.PreviewSplitRequest, api.PreviewSplitResponse]
}

// NewLedgerServiceClient builds a client for the service at baseURL.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &ledgerServiceClient{
		recordExpense:       connect.NewClient[api.RecordExpenseRequest, api.RecordExpenseResponse](httpClient, baseURL+LedgerServiceRecordExpenseProcedure, opts...),
		listExpenses:        connect.NewClient[api.ListExpensesRequest, api.ListExpensesResponse](httpClient, baseURL+LedgerServiceListExpensesProcedure, opts...),
		getBalances:         connect.NewClient[api.GetBalancesRequest, api.GetBalancesResponse](httpClient, baseURL+LedgerServiceGetBalancesProcedure, opts...),
		optimizeSettlements: connect.NewClient[api.OptimizeSettlementsRequest, api.OptimizeSettlementsResponse](httpClient, baseURL+LedgerServiceOptimizeSettlementsProcedure, opts...),
		previewSplit:        connect.NewClient[api.PreviewSplitRequest, api.PreviewSplitResponse](httpClient, baseURL+LedgerServicePreviewSplitProcedure, opts...),
	}
}

func (c *ledgerServiceClient) RecordExpense(ctx context.Context, req *connect.Request[api.RecordExpenseRequest]) (*connect.Response[api.RecordExpenseResponse], error) {
	return c.recordExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	return c.getBalances.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) OptimizeSettlements(ctx context.Context, req *connect.Request[api.OptimizeSettlementsRequest]) (*connect.Response[api.OptimizeSettlementsResponse], error) {
	return c.optimizeSettlements.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) PreviewSplit(ctx context.Context, req *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error) {
	return c.previewSplit.CallUnary(ctx, req)
}

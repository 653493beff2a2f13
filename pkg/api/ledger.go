package api

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/smartsplit/internal/money"
)

// SplitInput is one participant's share in a request. Amount is read for
// exact splits and Percent for percentage splits; equal splits only need
// UserID.
type SplitInput struct {
	UserID  string          `json:"user_id" validate:"required"`
	Amount  money.Money     `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
}

// RecordExpenseRequest records an expense. PayerID defaults to the caller.
// For equal splits Participants may be given instead of Splits.
type RecordExpenseRequest struct {
	GroupID      string       `json:"group_id" validate:"required"`
	PayerID      string       `json:"payer_id"`
	Amount       money.Money  `json:"amount"`
	Description  string       `json:"description" validate:"max=500"`
	SplitType    string       `json:"split_type" validate:"required,oneof=equal exact percentage"`
	Splits       []SplitInput `json:"splits" validate:"dive"`
	Participants []string     `json:"participants" validate:"dive,required"`
}

type Split struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username,omitempty"`
	Amount   money.Money `json:"amount"`
}

type Expense struct {
	ID            string      `json:"id"`
	GroupID       string      `json:"group_id"`
	PayerID       string      `json:"payer_id"`
	PayerUsername string      `json:"payer_username,omitempty"`
	Amount        money.Money `json:"amount"`
	Description   string      `json:"description"`
	SplitType     string      `json:"split_type"`
	CreatedBy     string      `json:"created_by"`
	CreatedAt     int64       `json:"created_at"`
	Splits        []Split     `json:"splits"`
}

type RecordExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type ListExpensesRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

type Balance struct {
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	TotalPaid money.Money `json:"total_paid"`
	TotalOwed money.Money `json:"total_owed"`
	Net       money.Money `json:"net_balance"`
}

type GetBalancesRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type GetBalancesResponse struct {
	Balances []Balance `json:"balances"`
}

type Settlement struct {
	FromUserID   string      `json:"from_user_id"`
	FromUsername string      `json:"from_username"`
	ToUserID     string      `json:"to_user_id"`
	ToUsername   string      `json:"to_username"`
	Amount       money.Money `json:"amount"`
}

type OptimizeSettlementsRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type OptimizeSettlementsResponse struct {
	Settlements []Settlement `json:"settlements"`
}

// PreviewSplitRequest computes splits without recording anything.
type PreviewSplitRequest struct {
	Amount       money.Money  `json:"amount"`
	SplitType    string       `json:"split_type" validate:"required,oneof=equal exact percentage"`
	Splits       []SplitInput `json:"splits" validate:"dive"`
	Participants []string     `json:"participants" validate:"dive,required"`
}

type PreviewSplitResponse struct {
	Splits []Split `json:"splits"`
}

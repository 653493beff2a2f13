package models

import "github.com/mmynk/smartsplit/internal/money"

// Balance is one member's position within a group.
// Positive Net means the member is owed money, negative means they owe.
type Balance struct {
	UserID    string
	Username  string
	TotalPaid money.Money
	TotalOwed money.Money
	Net       money.Money
}

// NewBalance derives Net from paid and owed.
func NewBalance(userID, username string, paid, owed money.Money) Balance {
	return Balance{
		UserID:    userID,
		Username:  username,
		TotalPaid: paid,
		TotalOwed: owed,
		Net:       paid.Sub(owed),
	}
}

// Settlement is a single transfer from a debtor to a creditor.
//
// Settlements are recomputed from current balances on every request and are
// never persisted.
type Settlement struct {
	FromUserID   string
	FromUsername string
	ToUserID     string
	ToUsername   string
	Amount       money.Money
}

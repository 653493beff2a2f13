// Package models defines the domain records of the SmartSplit ledger.
//
// # Stored records
//
//   - User: a registered account
//   - Group: a set of members sharing expenses
//   - Member: a user's membership in a group
//   - Expense and Split: an expense and its per-user shares; created
//     together and never modified afterwards
//   - PasswordResetToken: a pending password reset
//
// # Derived records
//
// Balance and Settlement are computed from a GroupLedger snapshot on every
// request and never stored.
//
// Relationships use ID strings rather than pointers. Amounts use money.Money.
package models

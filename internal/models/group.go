package models

// Group is a set of users sharing expenses.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// CreatedBy is the user who created the group. The creator is always
	// a member.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64

	// MemberCount is filled in by listing queries.
	MemberCount int
}

// Member is a user's membership in a group.
type Member struct {
	UserID   string
	Username string
	Email    string

	// JoinedAt is the Unix timestamp when the user joined the group.
	JoinedAt int64
}

// GroupLedger is a consistent snapshot of everything needed to derive a
// group's balances: its members and its full expense history.
type GroupLedger struct {
	GroupID  string
	Members  []Member
	Expenses []Expense
}

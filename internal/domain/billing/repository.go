package billing

import "context"

// BillRepository gives read access to bills.
type BillRepository interface {
	// ListOutstanding returns the bills still pending payment, ordered by due date.
	ListOutstanding(ctx context.Context) ([]*Bill, error)
}

// MemberRepository gives read access to members.
type MemberRepository interface {
	ListActive(ctx context.Context) ([]*Member, error)
}

// internal/domain/billing/bill.go
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus is the payment state of a bill.
type BillStatus string

const (
	BillStatusPending   BillStatus = "pending"
	BillStatusPaid      BillStatus = "paid"
	BillStatusCancelled BillStatus = "cancelled"
)

// Bill is a billing obligation owed by a member.
// Read from the 'bills' table; this service never writes it.
type Bill struct {
	ID          int64
	LodgeID     int64
	MemberID    int64
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time // calendar date; only year, month and day are meaningful
	Status      BillStatus
}

// Pending reports whether the bill is still awaiting payment.
func (b *Bill) Pending() bool {
	return b.Status == BillStatusPending
}

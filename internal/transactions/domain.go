// Package transactions records counter sales and their lifecycle.
package transactions

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
)

// Transaction statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = policy.TransactionStatusCompleted
	StatusCancelled = "cancelled"
	StatusVoided    = "voided"
)

// Transaction is a sale recorded at a branch.
type Transaction struct {
	ID            int64      `json:"id"`
	Code          string     `json:"transaction_code"`
	CustomerID    int64      `json:"customer_id"`
	BranchID      int64      `json:"branch_id"`
	AppointmentID *int64     `json:"appointment_id"`
	TotalAmount   float64    `json:"total_amount"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	Notes         string     `json:"notes"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedBy     *int64     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Snapshot returns the policy view of the transaction.
func (t Transaction) Snapshot() policy.Transaction {
	return policy.Transaction{ID: t.ID, BranchID: t.BranchID, CustomerID: t.CustomerID, Status: t.Status}
}

// ListFilter narrows listings.
type ListFilter struct {
	BranchID   int64
	CustomerID int64
	Status     string
	Page       int
	PerPage    int
}

// CreateInput is the payload for recording a sale.
type CreateInput struct {
	CustomerID    int64   `json:"customer_id" validate:"required,gt=0"`
	AppointmentID *int64  `json:"appointment_id" validate:"omitempty,gt=0"`
	TotalAmount   float64 `json:"total_amount" validate:"gte=0"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=cash credit_card debit_card online_payment"`
	Notes         string  `json:"notes" validate:"max=1000"`
}

// UpdateInput is a partial update. Status may move a pending sale to completed or cancelled.
type UpdateInput struct {
	TotalAmount   *float64 `json:"total_amount" validate:"omitempty,gte=0"`
	PaymentMethod *string  `json:"payment_method" validate:"omitempty,oneof=cash credit_card debit_card online_payment"`
	Notes         *string  `json:"notes" validate:"omitempty,max=1000"`
	Status        *string  `json:"status" validate:"omitempty,oneof=completed cancelled"`
}

// VoidInput carries the void reason.
type VoidInput struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// CodePrefix returns the daily code prefix, e.g. TXN-20250301-.
func CodePrefix(day time.Time) string {
	return "TXN-" + day.UTC().Format("20060102") + "-"
}

// NextCode returns the code following last within the day of prefix. An
// empty last starts the sequence at 0001.
func NextCode(prefix, last string) string {
	seq := 0
	if strings.HasPrefix(last, prefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(last, prefix)); err == nil {
			seq = n
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1)
}

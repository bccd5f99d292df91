package policy

import "strings"

// TransactionStatusCompleted is the terminal transaction state.
const TransactionStatusCompleted = "completed"

// Prescription holds the prescription attributes relevant to access decisions.
type Prescription struct {
	ID            int64
	PatientID     int64
	OptometristID int64
}

// Transaction holds the transaction attributes relevant to access decisions.
type Transaction struct {
	ID         int64
	BranchID   int64
	CustomerID int64
	Status     string
}

// Terminal reports whether the transaction reached a state that only void may change.
// Stored statuses are title-cased in older rows, so the comparison ignores case.
func (t Transaction) Terminal() bool {
	return strings.EqualFold(strings.TrimSpace(t.Status), TransactionStatusCompleted)
}

// User holds the account attributes relevant to access decisions.
type User struct {
	ID       int64
	BranchID *int64
}

// Appointment holds the appointment attributes relevant to access decisions.
type Appointment struct {
	ID            int64
	PatientID     int64
	OptometristID int64
	BranchID      *int64
}

// Stock identifies the branch owning a stock record.
type Stock struct {
	BranchID int64
}

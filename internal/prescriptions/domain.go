// Package prescriptions manages optical prescriptions issued by optometrists.
package prescriptions

import (
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
)

// Prescription types accepted by the clinic.
var Types = []string{"glasses", "contact_lenses", "sunglasses", "progressive", "bifocal"}

// Prescription statuses.
const (
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

const dateLayout = "2006-01-02"

// Eye holds the refraction values of one eye. Values are kept as entered.
type Eye struct {
	Sphere   string `json:"sphere,omitempty"`
	Cylinder string `json:"cylinder,omitempty"`
	Axis     string `json:"axis,omitempty"`
	Add      string `json:"add,omitempty"`
	PD       string `json:"pd,omitempty"`
}

// Prescription is a stored prescription.
type Prescription struct {
	ID            int64     `json:"id"`
	Number        string    `json:"prescription_number"`
	PatientID     int64     `json:"patient_id"`
	OptometristID int64     `json:"optometrist_id"`
	AppointmentID *int64    `json:"appointment_id"`
	BranchID      *int64    `json:"branch_id"`
	Type          string    `json:"type"`
	RightEye      Eye       `json:"right_eye"`
	LeftEye       Eye       `json:"left_eye"`
	Notes         string    `json:"notes"`
	IssueDate     time.Time `json:"issue_date"`
	ExpiryDate    time.Time `json:"expiry_date"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Snapshot returns the policy view of the prescription.
func (p Prescription) Snapshot() policy.Prescription {
	return policy.Prescription{ID: p.ID, PatientID: p.PatientID, OptometristID: p.OptometristID}
}

// ListFilter narrows listings.
type ListFilter struct {
	PatientID     int64
	OptometristID int64
	Status        string
	Type          string
}

// CreateInput is the payload for issuing a prescription.
type CreateInput struct {
	PatientID     int64  `json:"patient_id" validate:"required,gt=0"`
	AppointmentID *int64 `json:"appointment_id" validate:"omitempty,gt=0"`
	BranchID      *int64 `json:"branch_id" validate:"omitempty,gt=0"`
	Type          string `json:"type" validate:"required,oneof=glasses contact_lenses sunglasses progressive bifocal"`
	RightEye      Eye    `json:"right_eye"`
	LeftEye       Eye    `json:"left_eye"`
	Notes         string `json:"notes" validate:"max=1000"`
	IssueDate     string `json:"issue_date" validate:"required,datetime=2006-01-02"`
	ExpiryDate    string `json:"expiry_date" validate:"required,datetime=2006-01-02"`
}

// UpdateInput is a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Type       *string `json:"type" validate:"omitempty,oneof=glasses contact_lenses sunglasses progressive bifocal"`
	RightEye   *Eye    `json:"right_eye"`
	LeftEye    *Eye    `json:"left_eye"`
	Notes      *string `json:"notes" validate:"omitempty,max=1000"`
	ExpiryDate *string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	Status     *string `json:"status" validate:"omitempty,oneof=active expired cancelled"`
}

// Changes is the validated form of UpdateInput handed to the repository.
type Changes struct {
	Type       *string
	RightEye   *Eye
	LeftEye    *Eye
	Notes      *string
	ExpiryDate *time.Time
	Status     *string
}

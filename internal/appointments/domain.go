// Package appointments books eye exams and fans out their lifecycle changes.
package appointments

import (
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
)

// Appointment statuses.
const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no_show"
)

// Change types published besides status values.
const (
	ChangeCreated   = "created"
	ChangeUpdated   = "updated"
	ChangeCancelled = "cancelled"
	ChangeReminder  = "reminder"
)

const dateLayout = "2006-01-02"

// defaultLength is assumed for bookings stored without an end time.
const defaultLength = 30 * time.Minute

// Appointment is a booked slot with an optometrist.
type Appointment struct {
	ID            int64             `json:"id"`
	PatientID     int64             `json:"patient_id"`
	OptometristID int64             `json:"optometrist_id"`
	BranchID      *int64            `json:"branch_id"`
	Date          time.Time         `json:"appointment_date"`
	StartTime     string            `json:"start_time"`
	EndTime       string            `json:"end_time"`
	Type          string            `json:"type"`
	Status        string            `json:"status"`
	Notes         string            `json:"notes"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Patient       *notify.Person    `json:"patient,omitempty"`
	Optometrist   *notify.Person    `json:"optometrist,omitempty"`
	Branch        *notify.BranchRef `json:"branch,omitempty"`
}

// Snapshot returns the policy view of the appointment.
func (a Appointment) Snapshot() policy.Appointment {
	return policy.Appointment{ID: a.ID, PatientID: a.PatientID, OptometristID: a.OptometristID, BranchID: a.BranchID}
}

// Event returns the fan-out snapshot of the appointment.
func (a Appointment) Event() notify.Appointment {
	return notify.Appointment{
		ID:            a.ID,
		Date:          a.Date.Format(dateLayout),
		StartTime:     a.StartTime,
		Status:        a.Status,
		PatientID:     a.PatientID,
		OptometristID: a.OptometristID,
		BranchID:      a.BranchID,
		Patient:       a.Patient,
		Optometrist:   a.Optometrist,
		Branch:        a.Branch,
	}
}

// ListFilter narrows listings. Zero values are ignored.
type ListFilter struct {
	PatientID     int64
	OptometristID int64
	BranchID      int64
	Status        string
	Date          *time.Time
}

// CreateInput is the booking payload.
type CreateInput struct {
	PatientID       int64  `json:"patient_id" validate:"required,gt=0"`
	OptometristID   int64  `json:"optometrist_id" validate:"required,gt=0"`
	BranchID        int64  `json:"branch_id" validate:"required,gt=0"`
	AppointmentDate string `json:"appointment_date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime         string `json:"end_time" validate:"required,datetime=15:04"`
	Type            string `json:"type" validate:"required,oneof=eye_exam contact_fitting follow_up consultation emergency"`
	Notes           string `json:"notes" validate:"max=1000"`
}

// UpdateInput carries optional edits.
type UpdateInput struct {
	AppointmentDate *string `json:"appointment_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime       *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime         *string `json:"end_time" validate:"omitempty,datetime=15:04"`
	Type            *string `json:"type" validate:"omitempty,oneof=eye_exam contact_fitting follow_up consultation emergency"`
	Status          *string `json:"status" validate:"omitempty,oneof=scheduled confirmed in_progress completed cancelled no_show"`
	Notes           *string `json:"notes" validate:"omitempty,max=1000"`
}

func (in UpdateInput) cancelOnly() bool {
	return in.AppointmentDate == nil && in.StartTime == nil && in.EndTime == nil &&
		in.Type == nil && in.Notes == nil && (in.Status == nil || *in.Status == StatusCancelled)
}

// Changes is the parsed form of UpdateInput handed to the repository.
type Changes struct {
	Date      *time.Time
	StartTime *string
	EndTime   *string
	Type      *string
	Status    *string
	Notes     *string
}

// Slot is the time window checked for double booking.
type Slot struct {
	OptometristID int64
	Date          time.Time
	StartTime     string
	EndTime       string
	// ExcludeID skips the appointment being rescheduled.
	ExcludeID int64
}

var statusMessages = map[string]string{
	StatusConfirmed:  "Your appointment has been confirmed",
	StatusCancelled:  "Your appointment has been cancelled",
	StatusCompleted:  "Your appointment has been completed",
	StatusNoShow:     "You were marked as no-show for your appointment",
	StatusInProgress: "Your appointment is now in progress",
}

// StatusMessage is the patient-facing text for a status change.
func StatusMessage(status string) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return "Your appointment status has been updated to " + status
}

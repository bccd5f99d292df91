package notify

// Person is a short actor summary embedded in payloads.
type Person struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// BranchRef is a short branch summary embedded in appointment payloads.
type BranchRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Appointment is the read-only appointment snapshot used for fan-out.
type Appointment struct {
	ID            int64
	Date          string
	StartTime     string
	Status        string
	PatientID     int64
	OptometristID int64
	BranchID      *int64
	Patient       *Person
	Optometrist   *Person
	Branch        *BranchRef
}

// Product is the read-only product snapshot used for fan-out.
type Product struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	SKU   string `json:"sku"`
	Image string `json:"image,omitempty"`
}

// Branch is the read-only branch snapshot used for fan-out.
type Branch struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// StockState is the derived stock status.
type StockState string

const (
	StockLow    StockState = "low"
	StockNormal StockState = "normal"
)

// StockStatus reports low when level is at or below threshold.
func StockStatus(level, threshold int) StockState {
	if level <= threshold {
		return StockLow
	}
	return StockNormal
}

// AppointmentPayload is broadcast as appointment.<type>.
type AppointmentPayload struct {
	ID          int64              `json:"id"`
	Type        string             `json:"type"`
	Message     string             `json:"message"`
	Appointment AppointmentSummary `json:"appointment"`
	Timestamp   string             `json:"timestamp"`
}

// AppointmentSummary is the appointment block of AppointmentPayload.
type AppointmentSummary struct {
	ID          int64      `json:"id"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	Status      string     `json:"status"`
	Patient     *Person    `json:"patient"`
	Optometrist *Person    `json:"optometrist"`
	Branch      *BranchRef `json:"branch"`
}

// InventoryPayload is broadcast as inventory.<type>.
type InventoryPayload struct {
	Type      string        `json:"type"`
	Message   string        `json:"message"`
	Product   Product       `json:"product"`
	Branch    Branch        `json:"branch"`
	Stock     StockSnapshot `json:"stock"`
	Timestamp string        `json:"timestamp"`
}

// StockSnapshot is the stock block of InventoryPayload.
type StockSnapshot struct {
	CurrentLevel int        `json:"current_level"`
	Threshold    int        `json:"threshold"`
	Status       StockState `json:"status"`
}

// GeneralPayload is broadcast as notification.<type>.
type GeneralPayload struct {
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

func appointmentSummary(a Appointment) AppointmentSummary {
	return AppointmentSummary{
		ID:          a.ID,
		Date:        a.Date,
		Time:        a.StartTime,
		Status:      a.Status,
		Patient:     a.Patient,
		Optometrist: a.Optometrist,
		Branch:      a.Branch,
	}
}

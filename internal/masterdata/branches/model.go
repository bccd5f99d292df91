package branches

import (
	"time"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/notify"
)

// Branch is a clinic location. Staff and optometrists belong to one.
type Branch struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Summary returns the notification view of the branch.
func (b Branch) Summary() notify.Branch {
	return notify.Branch{ID: b.ID, Name: b.Name, Address: b.Address}
}

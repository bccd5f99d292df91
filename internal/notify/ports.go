package notify

import (
	"context"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

// Directory resolves role and branch membership. It is read-only here.
type Directory interface {
	UsersWithRole(ctx context.Context, role identity.Role) ([]int64, error)
	UsersWithRoleAndBranch(ctx context.Context, role identity.Role, branchID int64) ([]int64, error)
}

// Publisher delivers one event to one topic over some pub/sub transport.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, event string, payload any) error
}

// AuditPort receives fan-out failures. Implementations must not block.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

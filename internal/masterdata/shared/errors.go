package shared

import (
	"fmt"

	internalShared "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/shared"
)

var (
	ErrNotFound  = internalShared.ErrNotFound
	ErrInvalidID = fmt.Errorf("%w: invalid ID", internalShared.ErrValidation)
)

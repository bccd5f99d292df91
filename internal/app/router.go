package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/appointments"
	audithttp "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/audit/http"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/auth"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/inventory"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/masterdata/branches"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/masterdata/products"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/observability"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/httpx"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/prescriptions"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/rbac"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/transactions"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/users"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	Tokens              *auth.TokenService
	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	PrescriptionHandler *prescriptions.Handler
	TransactionHandler  *transactions.Handler
	AppointmentHandler  *appointments.Handler
	InventoryHandler    *inventory.Handler
	BranchHandler       *branches.Handler
	ProductHandler      *products.Handler
	AuditHandler        *audithttp.Handler
	JobHandler          *jobs.Handler
	RBACMiddleware      rbac.Middleware
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router for the clinic API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.Tokens != nil {
			r.Use(auth.Authenticate(params.Tokens, params.Logger))
		}
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireActor())
			if params.UsersHandler != nil {
				r.Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.PrescriptionHandler != nil {
				r.Route("/prescriptions", params.PrescriptionHandler.MountRoutes)
			}
			if params.TransactionHandler != nil {
				r.Route("/transactions", params.TransactionHandler.MountRoutes)
			}
			if params.AppointmentHandler != nil {
				r.Route("/appointments", params.AppointmentHandler.MountRoutes)
			}
			if params.InventoryHandler != nil {
				r.Route("/inventory", params.InventoryHandler.MountRoutes)
			}
			if params.BranchHandler != nil {
				r.Route("/branches", params.BranchHandler.MountRoutes)
			}
			if params.ProductHandler != nil {
				r.Route("/products", params.ProductHandler.MountRoutes)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireRole(identity.RoleAdmin))
			if params.AuditHandler != nil {
				r.Route("/audit", params.AuditHandler.MountRoutes)
			}
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "route not found")
	})
	return r
}

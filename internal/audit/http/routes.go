package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/httpx"
)

// Exports scan the whole filtered range, so each admin gets a few per minute.
const (
	exportLimit  = 10
	exportWindow = time.Minute
)

// MountRoutes registers the audit timeline and its CSV export.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/", h.handleTimeline)
	r.With(httprate.Limit(exportLimit, exportWindow,
		httprate.WithKeyFuncs(exportKey),
		httprate.WithLimitHandler(exportLimited),
	)).Get("/export.csv", h.handleExport)
}

func exportKey(r *http.Request) (string, error) {
	if actor, ok := identity.ActorFromContext(r.Context()); ok && actor.ID > 0 {
		return "audit-export:user:" + strconv.FormatInt(actor.ID, 10), nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "audit-export:ip:" + ip, nil
}

func exportLimited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Retry-After", strconv.Itoa(int(exportWindow.Seconds())))
	httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "audit export limit reached, try again shortly")
}

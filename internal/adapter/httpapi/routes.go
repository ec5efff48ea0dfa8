package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/forgewright/orchestrator/internal/middleware"
)

// MountRoutes builds the operational router: health checks plus the
// manual tick and work-cycle endpoints. Everything else (proposal and
// mission inspection) lives behind the MCP server, not here.
func MountRoutes(h *Handlers, allowedOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(CORS(allowedOrigin))
	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", h.HandleHealthz)
	r.Get("/healthz/deep", h.HandleHealthzDeep)

	r.Route("/orchestrator", func(r chi.Router) {
		r.Post("/tick", h.HandleTick)
		r.Post("/work-cycle/{agent}", h.HandleWorkCycle)
	})

	return r
}

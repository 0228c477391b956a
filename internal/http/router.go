package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router wraps the standard library http.ServeMux (no third-party routing
// dependency needed for this surface).
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterWebhookRoutes wires the signed vendor callback endpoint.
func (r *Router) RegisterWebhookRoutes(h *WebhookHandler) {
	r.Handle("/webhooks/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Receive(w, req)
	})
}

// RegisterCVRoutes wires the CV frame-batch intake and room-risk endpoints.
func (r *Router) RegisterCVRoutes(cv *CVIngestHandler, risk *RoomRiskHandler) {
	r.Handle("/ingest/cv-images", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		cv.Ingest(w, req)
	})
	r.Handle("/ingest/cv-images/finalize", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		cv.Finalize(w, req)
	})
	r.Handle("/ingest/cv-images/health", cv.Health)
	r.Handle("/cv/room-risk", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		risk.RoomRisk(w, req)
	})
}

// RegisterOpsRoutes wires the review/export surface for the operations team.
func (r *Router) RegisterOpsRoutes(export *EventsExportHandler) {
	r.Handle("/ops/api/v1/events/export", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		export.Export(w, req)
	})
}

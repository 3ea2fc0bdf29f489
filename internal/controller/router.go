// internal/controller/router.go
package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter wires every controller into one chi router. An empty origins
// list allows any origin.
func NewRouter(campaigns *CampaignController, segments *SegmentController, ingest *IngestController, origins []string, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", userHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Campaign routes
	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", campaigns.CreateCampaign)
		r.Get("/", campaigns.ListCampaigns)
		r.Get("/{id}", campaigns.GetCampaign)
		r.Put("/{id}", campaigns.UpdateCampaign)
		r.Delete("/{id}", campaigns.DeleteCampaign)
		r.Post("/{id}/start", campaigns.StartCampaign)
		r.Get("/{id}/stats", campaigns.GetCampaignStats)
		r.Post("/{id}/personalized-preview", campaigns.PersonalizedPreview)
	})

	// Segment routes
	r.Route("/segments", func(r chi.Router) {
		r.Post("/", segments.CreateSegment)
		r.Get("/", segments.ListSegments)
		r.Post("/preview", segments.PreviewSegment)
		r.Get("/{id}", segments.GetSegment)
		r.Put("/{id}", segments.UpdateSegment)
		r.Delete("/{id}", segments.DeleteSegment)
	})

	r.Post("/customers", ingest.CreateCustomer)
	r.Post("/orders", ingest.CreateOrder)

	return r
}

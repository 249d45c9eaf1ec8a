package utils

import (
	"net/http"

	_ "github.com/akolanti/GroundedQA/cmd/api/docs"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/http-swagger"
)

func GetNewUUID() string {
	return uuid.New().String()
}

func GetChiURLParam(request *http.Request, key string) string {
	return chi.URLParam(request, key)
}

// NewRouter returns a router carrying the operational endpoints (swagger and
// prometheus). A panicking handler answers 500 instead of killing the stream
// of other requests.
func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	mountSwagger(r)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func mountSwagger(r chi.Router) {
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}

package http

import (
	"net/http"

	"portfolio-booking/internal/delivery/http/handler"
	"portfolio-booking/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Router struct {
	router              *mux.Router
	log                 *logrus.Logger
	bookingHandler      *handler.BookingHandler
	assistantHandler    *handler.AssistantHandler
	corsMiddleware      *middleware.CORSMiddleware
	rateLimitMiddleware *middleware.RateLimitMiddleware
	gatherer            prometheus.Gatherer
}

func NewRouter(
	log *logrus.Logger,
	bookingHandler *handler.BookingHandler,
	assistantHandler *handler.AssistantHandler,
	corsMiddleware *middleware.CORSMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	gatherer prometheus.Gatherer,
) *Router {
	return &Router{
		router:              mux.NewRouter(),
		log:                 log,
		bookingHandler:      bookingHandler,
		assistantHandler:    assistantHandler,
		corsMiddleware:      corsMiddleware,
		rateLimitMiddleware: rateLimitMiddleware,
		gatherer:            gatherer,
	}
}

func (r *Router) Setup() *mux.Router {
	// Metrics scrape lives outside the API prefix
	if r.gatherer != nil {
		r.router.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Booking flow
	sessions := api.PathPrefix("/booking/sessions").Subrouter()
	sessions.HandleFunc("", r.bookingHandler.OpenSession).Methods(http.MethodPost, http.MethodOptions)
	sessions.HandleFunc("/{id}", r.bookingHandler.GetSession).Methods(http.MethodGet, http.MethodOptions)
	sessions.HandleFunc("/{id}", r.bookingHandler.CloseSession).Methods(http.MethodDelete)
	sessions.HandleFunc("/{id}/date", r.bookingHandler.SelectDate).Methods(http.MethodPost, http.MethodOptions)
	sessions.HandleFunc("/{id}/time", r.bookingHandler.SelectTime).Methods(http.MethodPost, http.MethodOptions)
	sessions.HandleFunc("/{id}/continue", r.bookingHandler.Continue).Methods(http.MethodPost, http.MethodOptions)
	sessions.HandleFunc("/{id}/back", r.bookingHandler.Back).Methods(http.MethodPost, http.MethodOptions)
	sessions.HandleFunc("/{id}/fields/{field}/validate", r.bookingHandler.ValidateField).Methods(http.MethodPost, http.MethodOptions)
	sessions.HandleFunc("/{id}/fields/{field}/edit", r.bookingHandler.EditField).Methods(http.MethodPost, http.MethodOptions)
	sessions.HandleFunc("/{id}/details", r.bookingHandler.SubmitDetails).Methods(http.MethodPost, http.MethodOptions)
	sessions.HandleFunc("/{id}/invite.ics", r.bookingHandler.ExportInvite).Methods(http.MethodGet, http.MethodOptions)
	sessions.HandleFunc("/{id}/submissions", r.bookingHandler.GetSubmissions).Methods(http.MethodGet, http.MethodOptions)

	// Confirm reaches the relay, so it gets its own limiter
	sessions.Handle("/{id}/confirm", r.rateLimitMiddleware.Handle(http.HandlerFunc(r.bookingHandler.Confirm))).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/confirm", r.preflight).Methods(http.MethodOptions)

	// Profile assistant
	api.HandleFunc("/assistant/messages", r.assistantHandler.PostMessage).Methods(http.MethodPost, http.MethodOptions)

	// Add request logging and CORS middleware
	r.router.Use(middleware.RequestLogger(r.log))
	r.router.Use(r.corsMiddleware.Handle)

	return r.router
}

// preflight is answered by the CORS middleware before it gets here
func (r *Router) preflight(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

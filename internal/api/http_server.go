// Package api is the HTTP transport over the booking engine.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"courtbook/internal/calendar"
	"courtbook/internal/config"
	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	routeHealthz            = "healthz"
	routeReadyz             = "readyz"
	routeCalendar           = "calendar"
	routeAvailability       = "availability"
	routeSchedule           = "schedule"
	routeListReservations   = "list_reservations"
	routeGetReservation     = "get_reservation"
	routeCreateReservation  = "create_reservation"
	routeCancelReservation  = "cancel_reservation"
	routeConfirmReservation = "confirm_reservation"
	routeUpdateReservation  = "update_reservation"
)

// BookingEngine is implemented by service.BookingService.
type BookingEngine interface {
	ResolveCalendar(ctx context.Context, courtID int64, date time.Time, privileged bool) (*calendar.Window, error)
	ListAvailability(ctx context.Context, q service.AvailabilityQuery) ([]service.CourtAvailability, error)
	ProposeReservation(ctx context.Context, p service.Proposal) (*models.Reservation, error)
	CancelReservation(ctx context.Context, id int64, requesterID string, privileged bool) (*models.Reservation, error)
	ConfirmReservation(ctx context.Context, id int64, actorID string, privileged bool) (*models.Reservation, error)
	RescheduleReservation(ctx context.Context, c service.Change) (*models.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*models.Reservation, error)
}

// ScheduleExporter is implemented by export.ScheduleExporter.
type ScheduleExporter interface {
	VenueSchedule(ctx context.Context, venueID int64, date time.Time, privileged bool) (*excelize.File, error)
}

// HealthChecker is implemented by database.DB.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HTTPServer struct {
	cfg      config.APIConfig
	engine   BookingEngine
	exporter ScheduleExporter
	health   HealthChecker
	auth     *HTTPAuth
	logger   *zerolog.Logger
	server   *http.Server
}

// NewHTTPServer wires the routes. exporter and health may be nil; their
// routes then answer 503.
func NewHTTPServer(cfg config.APIConfig, engine BookingEngine, exporter ScheduleExporter, health HealthChecker, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:      cfg,
		engine:   engine,
		exporter: exporter,
		health:   health,
		auth:     NewHTTPAuth(cfg),
		logger:   logger,
	}

	r := mux.NewRouter()
	r.Use(loggingMiddleware(logger), recoverMiddleware)
	r.HandleFunc("/healthz", srv.handleHealthz).Methods(http.MethodGet).Name(routeHealthz)
	r.HandleFunc("/readyz", srv.handleReadyz).Methods(http.MethodGet).Name(routeReadyz)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(srv.auth.Middleware)
	api.HandleFunc("/courts/{id:[0-9]+}/calendar", srv.handleCalendar).Methods(http.MethodGet).Name(routeCalendar)
	api.HandleFunc("/venues/{id:[0-9]+}/availability", srv.handleAvailability).Methods(http.MethodGet).Name(routeAvailability)
	api.HandleFunc("/venues/{id:[0-9]+}/schedule.xlsx", srv.handleSchedule).Methods(http.MethodGet).Name(routeSchedule)
	api.HandleFunc("/reservations", srv.handleListReservations).Methods(http.MethodGet).Name(routeListReservations)
	api.HandleFunc("/reservations", srv.handleCreateReservation).Methods(http.MethodPost).Name(routeCreateReservation)
	api.HandleFunc("/reservations/{id:[0-9]+}", srv.handleGetReservation).Methods(http.MethodGet).Name(routeGetReservation)
	api.HandleFunc("/reservations/{id:[0-9]+}", srv.handleUpdateReservation).Methods(http.MethodPut).Name(routeUpdateReservation)
	api.HandleFunc("/reservations/{id:[0-9]+}/cancel", srv.handleCancelReservation).Methods(http.MethodPost).Name(routeCancelReservation)
	api.HandleFunc("/reservations/{id:[0-9]+}/confirm", srv.handleConfirmReservation).Methods(http.MethodPost).Name(routeConfirmReservation)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           corsMiddleware(r),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

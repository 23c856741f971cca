package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/provider-matching/internal/booking"
	"github.com/example/provider-matching/internal/config"
	"github.com/example/provider-matching/internal/geo"
	"github.com/example/provider-matching/internal/geocode"
	"github.com/example/provider-matching/internal/ingest"
	"github.com/example/provider-matching/internal/matcher"
	"github.com/example/provider-matching/internal/models"
	"github.com/example/provider-matching/internal/notify"
	"github.com/example/provider-matching/internal/observability"
	"github.com/example/provider-matching/internal/storage"
)

type Server struct {
	Matcher  *matcher.Service
	Bookings *booking.Service
	Store    storage.Store
	Locs     geo.Locations
	Geocoder geocode.Client
	Kafka    *ingest.KafkaProducer
	WSReg    *notify.Registry

	logger   *slog.Logger
	validate *validator.Validate
	mux      *mux.Router
}

// NewServer wires the API process from config. A missing Postgres DSN falls
// back to the seeded in-memory store, and Redis, Kafka and geocoding stay
// optional so the binary runs locally with no backing services at all.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Warn("postgres unavailable, falling back to in-memory store", "error", err)
		} else {
			store = ps
		}
	}
	if store == nil {
		ms := storage.NewMemoryStore()
		ms.SeedCategories()
		store = ms
	}

	var locs geo.Locations
	if cfg.RedisAddr != "" {
		locs = geo.NewRedisLocations(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		locs = geo.NewIndex()
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	var geocoder geocode.Client
	if cfg.GeocodeEndpoint != "" {
		geocoder = geocode.NewCachedClient(geocode.NewNominatimClient(cfg.GeocodeEndpoint), cfg.GeocodeCacheTTL)
	}

	wsreg := notify.NewRegistry()
	var notifier booking.Notifier = wsreg
	if cfg.NotifyWebhook != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhook, wsreg)
	}

	s := &Server{
		Matcher:  &matcher.Service{Catalog: store, Locs: locs, Limit: cfg.MatchLimit},
		Bookings: &booking.Service{Store: store, Catalog: store, Notify: notifier},
		Store:    store,
		Locs:     locs,
		Geocoder: geocoder,
		Kafka:    kp,
		WSReg:    wsreg,
		logger:   logger,
		validate: validator.New(),
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/matches/search", s.handleMatchSearch).Methods("POST")
	s.mux.HandleFunc("/api/v1/categories", s.handleListCategories).Methods("GET")
	s.mux.HandleFunc("/api/v1/bookings", s.handleCreateBooking).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{id}", s.handleGetBooking).Methods("GET")
	s.mux.HandleFunc("/api/v1/bookings/{id}/confirm", s.handleConfirmBooking).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{id}/cancel", s.handleCancelBooking).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{id}/complete", s.handleCompleteBooking).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{id}/rate", s.handleRateBooking).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{id}/payment", s.handleGetPayment).Methods("GET")
	s.mux.HandleFunc("/internal/provider/status", s.handleProviderStatus).Methods("POST")
	s.mux.HandleFunc("/internal/provider/{id}/availability", s.handleProviderAvailability).Methods("PUT")
	s.mux.HandleFunc("/internal/provider/{id}/status", s.handleGetProviderStatus).Methods("GET")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{provider_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type callerPayload struct {
	Role string `json:"role" validate:"required,oneof=customer provider"`
	ID   string `json:"id" validate:"required"`
}

func (p callerPayload) caller() models.Caller {
	return models.Caller{Role: models.CallerRole(p.Role), ID: p.ID}
}

// callerFromHeader reads the acting party for GET endpoints, where a request
// body would be out of place.
func callerFromHeader(r *http.Request) models.Caller {
	return models.Caller{
		Role: models.CallerRole(r.Header.Get("X-Caller-Role")),
		ID:   r.Header.Get("X-Caller-ID"),
	}
}

type matchSearchRequest struct {
	CategoryID string   `json:"category_id" validate:"required"`
	Lat        *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon        *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
	Address    string   `json:"address" validate:"omitempty,max=500"`
	Limit      int      `json:"limit" validate:"gte=0,lte=50"`
}

func (s *Server) handleMatchSearch(w http.ResponseWriter, r *http.Request) {
	var req matchSearchRequest
	if !s.decode(w, &req, r) {
		return
	}
	matches, err := s.Matcher.FindMatches(matcher.Request{
		CategoryID:       req.CategoryID,
		CustomerLocation: s.resolveLocation(req),
		Limit:            req.Limit,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches, "count": len(matches)})
}

// resolveLocation prefers explicit coordinates and falls back to geocoding
// the address. A failed or unresolved lookup only costs the proximity bonus,
// so the search proceeds without a location.
func (s *Server) resolveLocation(req matchSearchRequest) *models.Coordinate {
	if req.Lat != nil && req.Lon != nil {
		return &models.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
	}
	if req.Address == "" || s.Geocoder == nil {
		return nil
	}
	loc, err := s.Geocoder.Geocode(req.Address)
	if err != nil {
		s.logger.Warn("geocode failed", "address", req.Address, "error", err)
		return nil
	}
	return loc
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.Store.ListCategories()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

type createBookingRequest struct {
	Caller     callerPayload `json:"caller" validate:"required"`
	CustomerID string        `json:"customer_id" validate:"required"`
	ProviderID string        `json:"provider_id" validate:"required"`
	CategoryID string        `json:"category_id" validate:"required"`
	AddressID  string        `json:"address_id" validate:"required"`
	Date       string        `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot   string        `json:"time_slot" validate:"required"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !s.decode(w, &req, r) {
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	b, err := s.Bookings.Create(req.Caller.caller(), booking.CreateRequest{
		CustomerID: req.CustomerID,
		ProviderID: req.ProviderID,
		CategoryID: req.CategoryID,
		AddressID:  req.AddressID,
		Date:       date,
		TimeSlot:   req.TimeSlot,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.Bookings.Get(callerFromHeader(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type confirmRequest struct {
	Caller        callerPayload `json:"caller" validate:"required"`
	PaymentMethod string        `json:"payment_method" validate:"required"`
}

func (s *Server) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !s.decode(w, &req, r) {
		return
	}
	pay, err := s.Bookings.Confirm(req.Caller.caller(), mux.Vars(r)["id"], req.PaymentMethod)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pay)
}

type actionRequest struct {
	Caller callerPayload `json:"caller" validate:"required"`
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !s.decode(w, &req, r) {
		return
	}
	b, err := s.Bookings.Cancel(req.Caller.caller(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCompleteBooking(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !s.decode(w, &req, r) {
		return
	}
	b, err := s.Bookings.Complete(req.Caller.caller(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type rateRequest struct {
	Caller  callerPayload `json:"caller" validate:"required"`
	Rating  int           `json:"rating" validate:"required,min=1,max=5"`
	Comment string        `json:"comment" validate:"max=2000"`
}

func (s *Server) handleRateBooking(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !s.decode(w, &req, r) {
		return
	}
	avg, err := s.Bookings.Rate(req.Caller.caller(), mux.Vars(r)["id"], req.Rating, req.Comment)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider_avg_rating": avg})
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.Bookings.Payment(callerFromHeader(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type providerStatusRequest struct {
	ProviderID string   `json:"provider_id" validate:"required"`
	Lat        *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon        *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
	Available  bool     `json:"available"`
}

func (s *Server) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	var req providerStatusRequest
	if !s.decode(w, &req, r) {
		return
	}
	st := models.ProviderStatus{ProviderID: req.ProviderID, Available: req.Available, Updated: time.Now()}
	if req.Lat != nil && req.Lon != nil {
		st.Location = &models.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
	}
	if s.Kafka != nil {
		// async consumers keep redis in step; the local write keeps
		// single-process setups correct
		_ = s.Kafka.PublishStatus(st)
	}
	s.Locs.Upsert(st)
	observability.ProviderStatusUpdates.Inc()
	w.WriteHeader(http.StatusNoContent)
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

func (s *Server) handleProviderAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := s.Store.SetProviderAvailability(mux.Vars(r)["id"], req.Available); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProviderStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := s.Locs.Status(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "no status for provider")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["provider_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}
	sess := s.WSReg.Add(id, conn)
	observability.ProvidersConnected.Inc()
	defer func() {
		s.WSReg.Remove(id, sess)
		observability.ProvidersConnected.Dec()
		conn.Close()
	}()
	// drain the socket until the provider hangs up
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// decode unmarshals and validates a JSON request body, writing the 400
// itself when the payload is unusable.
func (s *Server) decode(w http.ResponseWriter, dst any, r *http.Request) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, booking.ErrBadRequest), errors.Is(err, matcher.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, booking.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrWrongState), errors.Is(err, booking.ErrSlotTaken),
		errors.Is(err, booking.ErrAlreadyRated), errors.Is(err, booking.ErrNoOffering):
		status = http.StatusConflict
	}

	resp := map[string]any{"error": err.Error()}
	var pe *booking.PreconditionError
	if errors.As(err, &pe) {
		resp["transition"] = pe.Transition
		resp["reason"] = pe.Reason.Error()
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		resp["error"] = "internal error"
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }

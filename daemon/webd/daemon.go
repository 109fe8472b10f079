package webd

import (
	"encoding/json"
	"log"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/leantrack/tripd/engine"
	"github.com/leantrack/tripd/params"
)

// WebDaemon is the small HTTP surface UI collaborators consume:
// engine status, the last stamped point, and a websocket statistics stream.
// It renders no maps and draws no widgets; that's the collaborators' job.
type WebDaemon struct {
	Config         *params.WebDaemonConfig
	logger         *slog.Logger
	melodyInstance *melody.Melody
	engine         *engine.Engine
}

func NewWebDaemon(config *params.WebDaemonConfig, eng *engine.Engine) *WebDaemon {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	return &WebDaemon{
		Config: config,
		logger: slog.With("d", "web"),
		engine: eng,
	}
}

// Run starts the HTTP server (ListenAndServe) and waits for it,
// returning any server error.
func (s *WebDaemon) Run() error {
	router := s.NewRouter()
	log.Printf("Starting web daemon on %s", s.Config.Address)
	return http.ListenAndServe(s.Config.Address, router)
}

func (s *WebDaemon) NewRouter() *mux.Router {
	s.initMelody()

	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	router.Path("/socat").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/status").HandlerFunc(s.handleStatus).Methods(http.MethodGet)
	apiJSONRoutes.Path("/tracks/last").HandlerFunc(s.handleLastPoint).Methods(http.MethodGet)

	return router
}

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("pong"))
}

func (s *WebDaemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	if err := json.NewEncoder(w).Encode(s.engine.Status()); err != nil {
		slog.Error("Failed to encode status", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleLastPoint serves the most recently stamped point as a GeoJSON feature.
func (s *WebDaemon) handleLastPoint(w http.ResponseWriter, r *http.Request) {
	tp := s.engine.LastPoint()
	if tp == nil {
		http.Error(w, "no points yet", http.StatusNotFound)
		return
	}
	f := geojson.NewFeature(orb.Point{tp.Lon, tp.Lat})
	f.Properties["Speed"] = tp.Speed
	f.Properties["Elevation"] = tp.Elevation
	f.Properties["Time"] = tp.Time().UTC()
	if tp.HasLean() {
		f.Properties["Lean"] = tp.Lean
	}
	if tp.HasAccel() {
		f.Properties["Accel"] = tp.Accel
	}
	if err := json.NewEncoder(w).Encode(f); err != nil {
		slog.Error("Failed to encode last point", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

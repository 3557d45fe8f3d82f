package dummy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxDelay caps the simulated leak so the target never hangs forever.
const maxDelay = 30 * time.Second

type ServerConfig struct {
	Port int

	// Latency added to every crocodile response
	BaseLatency time.Duration
	// Extra latency per request served so far, to mimic a slow leak
	LeakPerRequest time.Duration
	// Fraction of crocodile requests answered with 500
	ErrorRate float64
	// Number of crocodiles; detail IDs above this are 404
	Items int
}

type crocodile struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Sex         string `json:"sex"`
	DateOfBirth string `json:"date_of_birth"`
}

var names = []string{"Bert", "Ed", "Lyle", "Solo", "Sobek", "Sang", "Lolong", "Gustave", "Khaya", "Smiley"}

type server struct {
	cfg    ServerConfig
	served atomic.Int64
	crocs  []crocodile
}

// NewHandler builds the demo target's routes.
func NewHandler(cfg ServerConfig) http.Handler {
	if cfg.Items <= 0 {
		cfg.Items = 10
	}
	s := &server{cfg: cfg}
	for i := 1; i <= cfg.Items; i++ {
		sex := "M"
		if i%2 == 0 {
			sex = "F"
		}
		s.crocs = append(s.crocs, crocodile{
			ID:          i,
			Name:        names[(i-1)%len(names)],
			Sex:         sex,
			DateOfBirth: time.Date(2000+i%20, time.Month(i%12+1), i%28+1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
		})
	}

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("soakq dummy target"))
	})
	r.Route("/public/crocodiles", func(r chi.Router) {
		r.Use(s.simulate)
		r.Get("/", s.list)
		r.Get("/{id}/", s.detail)
	})

	// Fixed-profile endpoints for quick manual runs
	r.Get("/fast", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(40)+10) * time.Millisecond)
		w.Write([]byte("Fast response"))
	})
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(1000)+1000) * time.Millisecond)
		w.Write([]byte("Slow response"))
	})
	return r
}

// simulate applies the configured latency growth and error injection.
func (s *server) simulate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := s.served.Add(1)
		delay := s.cfg.BaseLatency + time.Duration(n-1)*s.cfg.LeakPerRequest
		if delay > maxDelay {
			delay = maxDelay
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if s.cfg.ErrorRate > 0 && rand.Float64() < s.cfg.ErrorRate {
			http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.crocs)
}

func (s *server) detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 || id > len(s.crocs) {
		http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
		return
	}
	writeJSON(w, s.crocs[id-1])
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Start binds cfg.Port and serves the demo target in the background.
// Port 0 picks a free port; the chosen address is in the returned
// server's Addr.
func Start(cfg ServerConfig, log *zap.Logger) (*http.Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("dummy server: %w", err)
	}

	srv := &http.Server{
		Addr:    ln.Addr().String(),
		Handler: NewHandler(cfg),
	}
	log.Info("dummy server running",
		zap.String("addr", srv.Addr),
		zap.Strings("endpoints", []string{"/public/crocodiles/", "/public/crocodiles/{id}/", "/fast", "/slow"}),
	)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("dummy server failed", zap.Error(err))
		}
	}()
	return srv, nil
}

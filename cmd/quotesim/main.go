// quotesim is a standalone quote API for development. It serves the same
// routes the bot's HTTP client consumes, backed by the deterministic
// simulator, with optional TOTP-gated sessions to mirror the production
// login flow.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pquerna/otp/totp"

	"trading-botv1/internal/logger"
	"trading-botv1/internal/marketdata"
)

type sessionStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func (s *sessionStore) issue(ttl time.Duration) string {
	b := make([]byte, 16)
	rand.Read(b)
	token := hex.EncodeToString(b)
	s.mu.Lock()
	s.tokens[token] = time.Now().Add(ttl)
	s.mu.Unlock()
	return token
}

func (s *sessionStore) valid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(s.tokens, token)
		return false
	}
	return true
}

func main() {
	addr := flag.String("addr", ":8100", "listen address")
	seed := flag.Int64("seed", 42, "random walk seed")
	apiKey := flag.String("api-key", "", "required API key (empty disables auth)")
	totpSecret := flag.String("totp-secret", "", "TOTP secret for session login (empty disables)")
	flag.Parse()

	logger.Init("quotesim", logger.ParseLevel("info"))

	sim := marketdata.NewSim(*seed)
	sessions := &sessionStore{tokens: make(map[string]time.Time)}
	authOn := *apiKey != "" && *totpSecret != ""

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !authOn {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.FormValue("api_key") != *apiKey || !totp.Validate(r.FormValue("totp"), *totpSecret) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := sessions.issue(12 * time.Hour)
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if authOn {
				token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
				if !sessions.valid(token) {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
			}
			h(w, r)
		}
	}

	mux.HandleFunc("/api/v1/quote", authed(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "symbol required", http.StatusBadRequest)
			return
		}
		q, err := sim.Current(r.Context(), symbol)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(q)
	}))

	mux.HandleFunc("/api/v1/history", authed(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			http.Error(w, "symbol required", http.StatusBadRequest)
			return
		}
		period := r.URL.Query().Get("period")
		series, err := sim.History(r.Context(), symbol, period)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"symbol": series.Symbol,
			"bars":   series.Bars,
		})
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		slog.Info("quotesim listening", "addr", *addr, "seed", *seed, "auth", authOn)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// target is a local server for trying hyperspank against healthy, slow and
// misbehaving endpoints without touching a real system.
type target struct {
	requests atomic.Int64
	conns    atomic.Int64
	log      *logrus.Logger
}

func main() {
	port := pflag.IntP("port", "p", 8080, "Listening port")
	verbose := pflag.BoolP("verbose", "v", false, "Log every request")
	pflag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	t := &target{log: log}
	srv := &http.Server{
		Addr:      fmt.Sprintf(":%d", *port),
		Handler:   t.routes(),
		ConnState: t.trackConn,
	}
	log.Infof("target server listening on %s", srv.Addr)
	log.Fatal(srv.ListenAndServe())
}

func (t *target) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", t.count(handleSlow))
	mux.HandleFunc("/drop", t.count(handleDrop))
	mux.HandleFunc("/short", t.count(handleShortBody))
	mux.HandleFunc("/flaky", t.count(t.handleFlaky))
	mux.HandleFunc("/status/", t.count(handleStatus))
	mux.HandleFunc("/stats", t.handleStats)
	mux.HandleFunc("/", t.count(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"ok": true, "path": r.URL.Path})
	}))
	return mux
}

func (t *target) count(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := t.requests.Add(1)
		t.log.WithFields(logrus.Fields{
			"n":          n,
			"path":       r.URL.Path,
			"connection": r.Header.Get("Connection"),
			"close":      r.Close,
		}).Debug("request")
		next(w, r)
	}
}

func (t *target) trackConn(_ net.Conn, state http.ConnState) {
	if state == http.StateNew {
		t.conns.Add(1)
	}
}

// handleSlow delays the response by ?ms= milliseconds (default 250).
func handleSlow(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.Atoi(r.URL.Query().Get("ms"))
	if err != nil || ms < 0 {
		ms = 250
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	respondJSON(w, http.StatusOK, map[string]any{"delayed_ms": ms})
}

// handleDrop closes the connection without answering, which clients see as a
// transport failure.
func handleDrop(w http.ResponseWriter, r *http.Request) {
	hijack(w, "")
}

// handleShortBody promises more bytes than it sends so that reading the body
// fails after the headers arrived.
func handleShortBody(w http.ResponseWriter, r *http.Request) {
	hijack(w, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 1024\r\n\r\ntruncated")
}

// handleFlaky drops every ?every=-th request (default 3) and serves the rest.
func (t *target) handleFlaky(w http.ResponseWriter, r *http.Request) {
	every, err := strconv.Atoi(r.URL.Query().Get("every"))
	if err != nil || every < 1 {
		every = 3
	}
	if t.requests.Load()%int64(every) == 0 {
		handleDrop(w, r)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleStatus answers /status/{code} with that status code.
func handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.URL.Path[len("/status/"):])
	if err != nil || code < 100 || code > 599 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid status code"})
		return
	}
	respondJSON(w, code, map[string]any{"status": code})
}

func (t *target) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"requests":    t.requests.Load(),
		"connections": t.conns.Load(),
	})
}

func hijack(w http.ResponseWriter, raw string) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		return
	}
	defer conn.Close()
	if raw != "" {
		_, _ = buf.WriteString(raw)
		_ = buf.Flush()
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

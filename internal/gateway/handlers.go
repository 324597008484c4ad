package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"fxdata-system/internal/barcache"
	"fxdata-system/internal/model"
	"fxdata-system/internal/query"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseRange reads start/end query params (RFC3339).
func parseRange(r *http.Request) (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		return start, end, errors.New("bad or missing start (RFC3339)")
	}
	end, err = time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		return start, end, errors.New("bad or missing end (RFC3339)")
	}
	return start, end, nil
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, queries *query.Layer, cache *barcache.Cache) {
	// WebSocket endpoint: streams bar-update notifications.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[api_gateway] ws upgrade error: %v", err)
			return
		}
		hub.HandleWS(conn)
	})

	// REST: minute bars, optionally resampled.
	// GET /api/bars?instrument=EURUSD&tf=5&start=...&end=...
	mux.HandleFunc("/api/bars", func(w http.ResponseWriter, r *http.Request) {
		instrument := r.URL.Query().Get("instrument")
		if instrument == "" {
			writeError(w, http.StatusBadRequest, "missing instrument")
			return
		}
		start, end, err := parseRange(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tf := 1
		if s := r.URL.Query().Get("tf"); s != "" {
			if tf, err = strconv.Atoi(s); err != nil {
				writeError(w, http.StatusBadRequest, "bad tf")
				return
			}
		}

		bars, err := queries.Bars(instrument, tf, start, end)
		if err != nil {
			if errors.Is(err, query.ErrInvalidTimeframe) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			log.Printf("[api_gateway] bars query error: %v", err)
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		writeJSON(w, bars)
	})

	// REST: raw ticks.
	// GET /api/ticks?instrument=EURUSD&variant=trade&start=...&end=...
	mux.HandleFunc("/api/ticks", func(w http.ResponseWriter, r *http.Request) {
		instrument := r.URL.Query().Get("instrument")
		variant := model.Variant(r.URL.Query().Get("variant"))
		if instrument == "" || !variant.Valid() {
			writeError(w, http.StatusBadRequest, "missing instrument or bad variant")
			return
		}
		start, end, err := parseRange(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ticks, err := queries.Ticks(instrument, variant, start, end, nil)
		if err != nil {
			log.Printf("[api_gateway] ticks query error: %v", err)
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		writeJSON(w, ticks)
	})

	// REST: coverage summary, served from the Redis cache when warm.
	// GET /api/coverage?instrument=EURUSD
	mux.HandleFunc("/api/coverage", func(w http.ResponseWriter, r *http.Request) {
		instrument := r.URL.Query().Get("instrument")
		if instrument == "" {
			writeError(w, http.StatusBadRequest, "missing instrument")
			return
		}

		if info, ok := cache.GetCoverage(r.Context(), instrument); ok {
			writeJSON(w, info)
			return
		}

		info, err := queries.Coverage(instrument)
		if err != nil {
			log.Printf("[api_gateway] coverage query error: %v", err)
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		cache.SetCoverage(context.Background(), info)
		writeJSON(w, info)
	})

	// REST: gateway status.
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"ws_clients": hub.ClientCount(),
		})
	})
}

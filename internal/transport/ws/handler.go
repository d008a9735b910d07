// Package ws exposes the stream processor to a call transport over a
// WebSocket and serves the read side over plain HTTP.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xaenox/interview-ranker/internal/cache"
	"github.com/xaenox/interview-ranker/internal/models"
	"github.com/xaenox/interview-ranker/internal/processor"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // transcripts arrive whole on every update
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Engine is what the transport drives.
type Engine interface {
	Handle(ctx context.Context, ev processor.Event) error
	Snapshot() processor.Snapshot
	Questions() []models.Question
}

// LeaderboardReader serves the mirrored ranking of any session, live or
// finished.
type LeaderboardReader interface {
	Top(ctx context.Context, sessionID string, limit int) ([]cache.LeaderboardEntry, error)
	Rank(ctx context.Context, sessionID string, questionID int) (int64, error)
}

const defaultLeaderboardLimit = 10

type Handler struct {
	engine      Engine
	leaderboard LeaderboardReader
	logger      *zap.Logger
}

func NewHandler(engine Engine, logger *zap.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// WithLeaderboard enables the session leaderboard endpoints.
func (h *Handler) WithLeaderboard(lb LeaderboardReader) *Handler {
	h.leaderboard = lb
	return h
}

// NewRouter wires the call socket, the read endpoints and metrics.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/calls/ws", h.CallWS).Methods("GET")
	r.HandleFunc("/status", h.Status).Methods("GET")
	r.HandleFunc("/questions", h.Questions).Methods("GET")
	r.HandleFunc("/sessions/{id}/leaderboard", h.Leaderboard).Methods("GET")
	r.HandleFunc("/sessions/{id}/questions/{qid:[0-9]+}/rank", h.Rank).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	return r
}

// Status handles GET /status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// Questions handles GET /questions
func (h *Handler) Questions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Questions())
}

// Leaderboard handles GET /sessions/{id}/leaderboard?limit=N
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if h.leaderboard == nil {
		writeError(w, http.StatusNotFound, "leaderboard disabled")
		return
	}
	limit := defaultLeaderboardLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessionID := mux.Vars(r)["id"]
	entries, err := h.leaderboard.Top(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("Failed to read leaderboard", zap.Error(err), zap.String("session_id", sessionID))
		writeError(w, http.StatusBadGateway, "leaderboard unavailable")
		return
	}
	if entries == nil {
		entries = []cache.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Rank handles GET /sessions/{id}/questions/{qid}/rank
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	if h.leaderboard == nil {
		writeError(w, http.StatusNotFound, "leaderboard disabled")
		return
	}
	vars := mux.Vars(r)
	questionID, err := strconv.Atoi(vars["qid"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}

	rank, err := h.leaderboard.Rank(r.Context(), vars["id"], questionID)
	if err != nil {
		h.logger.Error("Failed to read rank", zap.Error(err), zap.String("session_id", vars["id"]))
		writeError(w, http.StatusBadGateway, "leaderboard unavailable")
		return
	}
	if rank < 0 {
		writeError(w, http.StatusNotFound, "question not ranked in session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"questionId": int64(questionID), "rank": rank})
}

// CallWS handles GET /calls/ws. Every inbound event is answered with either
// the resulting snapshot or an error envelope.
func (h *Handler) CallWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan []byte, 64)
	go h.writePump(conn, send)
	h.readPump(r.Context(), conn, send)
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, send chan<- []byte) {
	// callID is the session this connection started, if still open.
	var callID string
	defer func() {
		// A transport that drops mid-call must not leave its session open.
		if callID != "" {
			end := processor.CallEnd{Reason: "transport disconnected", SessionID: callID}
			if err := h.engine.Handle(context.WithoutCancel(ctx), end); err != nil {
				h.logger.Warn("Failed to end call after disconnect", zap.Error(err))
			}
		}
		close(send)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket error", zap.Error(err))
			}
			return
		}

		reply := h.dispatch(ctx, data, &callID)
		select {
		case send <- reply:
		default:
			h.logger.Warn("Dropping reply, client is not reading")
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, data []byte, callID *string) []byte {
	ev, err := DecodeEvent(data)
	if err == nil {
		err = h.engine.Handle(ctx, ev)
	}
	if err != nil {
		h.logger.Info("Rejected transport event", zap.Error(err))
		return h.mustEncode(MsgError, errorPayload{Message: err.Error()})
	}

	snap := h.engine.Snapshot()
	switch ev.(type) {
	case processor.CallStart:
		*callID = snap.SessionID
	case processor.CallEnd:
		*callID = ""
	}
	return h.mustEncode(MsgSnapshot, snap)
}

func (h *Handler) mustEncode(msgType string, payload any) []byte {
	data, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error("Failed to encode reply", zap.Error(err), zap.String("type", msgType))
		data, _ = encode(MsgError, errorPayload{Message: "internal error"})
	}
	return data
}

func (h *Handler) writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

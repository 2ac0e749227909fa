package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/linkup-chat/linkup/pkg/protocol"
)

// API serves the request/response side: message submission and history
// fetch. Submissions are rate limited per sender.
type API struct {
	history *HistoryStore
	log     *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewAPI creates the HTTP API over the given history store.
func NewAPI(history *HistoryStore, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		history:  history,
		log:      log,
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(5),
		burst:    10,
	}
}

// Routes registers the API endpoints on the router.
func (a *API) Routes(r *mux.Router) {
	r.HandleFunc("/api/messages", a.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/api/conversations/{id}/messages", a.handleHistory).Methods(http.MethodGet)
}

func (a *API) limiter(senderID string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.limiters[senderID]
	if !ok {
		l = rate.NewLimiter(a.limit, a.burst)
		a.limiters[senderID] = l
	}
	return l
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req protocol.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if req.ConversationID == "" || req.SenderID == "" {
		writeError(w, http.StatusBadRequest, "conversationId and senderId are required")
		return
	}
	if req.Kind == "" {
		req.Kind = protocol.KindText
	}
	if req.Kind == protocol.KindText && strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}

	if !a.limiter(req.SenderID).Allow() {
		writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}

	confirmed := protocol.Message{
		ID:               uuid.NewString(),
		ConversationID:   req.ConversationID,
		SenderID:         req.SenderID,
		SenderName:       req.SenderName,
		Body:             req.Body,
		Kind:             req.Kind,
		AttachmentRef:    req.AttachmentRef,
		CreatedAt:        time.Now().UTC(),
		CorrelationToken: req.CorrelationToken,
	}
	a.history.Append(confirmed)

	a.log.Info("message submitted",
		zap.String("conversation", confirmed.ConversationID),
		zap.String("message", confirmed.ID),
		zap.String("sender", confirmed.SenderID))

	writeJSON(w, http.StatusCreated, protocol.SubmitResponse{Message: confirmed})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "conversation id is required")
		return
	}
	writeJSON(w, http.StatusOK, protocol.HistoryResponse{Messages: a.history.List(conversationID)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: msg})
}

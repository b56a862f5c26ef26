package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/pipeline"
)

const (
	// wsWriteWait is the time allowed to write one websocket message.
	wsWriteWait = 5 * time.Second
	// wsPingPeriod is how often idle feed connections are pinged.
	wsPingPeriod = 30 * time.Second
	// defaultMaxDistance is the similarity cut-off when a request sets none.
	defaultMaxDistance = 1.0
)

// EventsHandler handles event history and live feed endpoints.
type EventsHandler struct {
	events   database.EventReader
	similar  database.SimilarEventFinder // nil when the backend stores no embeddings
	feed     *pipeline.EventFeed
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewEventsHandler creates a new events handler. Similarity search is
// enabled when events also implements database.SimilarEventFinder.
func NewEventsHandler(events database.EventReader, feed *pipeline.EventFeed, logger *slog.Logger) *EventsHandler {
	h := &EventsHandler{
		events: events,
		feed:   feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // origin policy is enforced by the CORS middleware
			},
		},
		logger: logger,
	}
	if finder, ok := events.(database.SimilarEventFinder); ok {
		h.similar = finder
	}
	return h
}

// EventListResponse is the response of the event list endpoint.
type EventListResponse struct {
	Events []database.MatchEvent `json:"events"`
	Total  int                   `json:"total"`
}

// List returns recorded events newest first. Query parameters: limit,
// channel, label, watchlisted=true and since (RFC 3339).
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.events.ListEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	total, err := h.events.CountEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to count events", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to count events")
		return
	}
	if events == nil {
		events = []database.MatchEvent{}
	}

	respondJSON(w, http.StatusOK, EventListResponse{Events: events, Total: total})
}

func parseEventFilter(r *http.Request) (database.EventFilter, error) {
	q := r.URL.Query()

	limit, err := queryInt(r, "limit", constants.DefaultEventLimit)
	if err != nil {
		return database.EventFilter{}, errBadParam("limit")
	}
	channel, err := database.ParseChannel(q.Get("channel"))
	if err != nil {
		return database.EventFilter{}, err
	}

	filter := database.EventFilter{
		Limit:   database.NormalizeLimit(limit, constants.DefaultEventLimit, constants.MaxEventLimit),
		Channel: channel,
		Label:   q.Get("label"),
	}
	if raw := q.Get("watchlisted"); raw != "" {
		watchlisted, err := strconv.ParseBool(raw)
		if err != nil {
			return database.EventFilter{}, errBadParam("watchlisted")
		}
		filter.WatchlistedOnly = watchlisted
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return database.EventFilter{}, errBadParam("since")
		}
		filter.Since = since
	}
	return filter, nil
}

type errBadParam string

func (e errBadParam) Error() string {
	return "invalid " + string(e) + " parameter"
}

// SimilarRequest asks for events whose face embedding is close to a stored
// event or to a given embedding.
type SimilarRequest struct {
	EventID     int64     `json:"event_id,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	MaxDistance float64   `json:"max_distance,omitempty"`
}

// SimilarResponse is the response of the similar events endpoint.
type SimilarResponse struct {
	Results []database.SimilarEvent `json:"results"`
	Count   int                     `json:"count"`
}

// Similar finds events with a similar face embedding. Backends without
// stored embeddings answer 501.
func (h *EventsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	if h.similar == nil {
		respondError(w, http.StatusNotImplemented, "similarity search is not supported by the database backend")
		return
	}

	var req SimilarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.EventID == 0 && len(req.Embedding) == 0 {
		respondError(w, http.StatusBadRequest, "event_id or embedding is required")
		return
	}

	embedding := req.Embedding
	if len(embedding) == 0 {
		var err error
		embedding, err = h.similar.GetEventEmbedding(r.Context(), req.EventID)
		if err != nil {
			h.logger.Error("failed to load event embedding", "event_id", req.EventID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load event embedding")
			return
		}
		if len(embedding) == 0 {
			respondError(w, http.StatusNotFound, "event has no stored embedding")
			return
		}
	}

	limit := database.NormalizeLimit(req.Limit, constants.DefaultSimilarLimit, constants.MaxEventLimit)
	maxDistance := req.MaxDistance
	if maxDistance <= 0 {
		maxDistance = defaultMaxDistance
	}

	results, err := h.similar.FindSimilarEvents(r.Context(), embedding, limit, maxDistance)
	if err != nil {
		h.logger.Error("similar event search failed", "error", err)
		respondError(w, http.StatusInternalServerError, "similar event search failed")
		return
	}
	if results == nil {
		results = []database.SimilarEvent{}
	}
	respondJSON(w, http.StatusOK, SimilarResponse{Results: results, Count: len(results)})
}

// Feed upgrades to a websocket and pushes every newly recorded event as a
// JSON text message until the client disconnects.
func (h *EventsHandler) Feed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := h.feed.Subscribe()
	defer h.feed.Unsubscribe(events)

	// Reads only detect the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// Stream pushes newly recorded events as server-sent events for clients
// that cannot use websockets.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := h.feed.Subscribe()
	defer h.feed.Unsubscribe(events)

	sendSSEEvent(w, flusher, "ready", map[string]int{"listeners": h.feed.Len()})

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, "event", ev)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

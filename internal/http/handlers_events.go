// Package httpx provides the HTTP handlers and routing for the popmap API.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

// EventHandlers serves the event lifecycle: public discovery, owner
// submission and updates, and admin moderation.
type EventHandlers struct {
	events *service.EventService
	logger *slog.Logger
}

// EventHandlersOptions groups dependencies for NewEventHandlers.
type EventHandlersOptions struct {
	Events *service.EventService
	Logger *slog.Logger
}

// NewEventHandlers constructs EventHandlers with explicit dependency injection.
func NewEventHandlers(opts EventHandlersOptions) *EventHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandlers{events: opts.Events, logger: logger}
}

type eventListResponse struct {
	Events     []*model.Event `json:"events"`
	NextCursor *string        `json:"next_cursor,omitempty"`
}

// List handles GET /api/events. The default view is the public listing of
// approved, not-yet-ended events; view=managed serves owner dashboards and
// the admin moderation queue.
func (h *EventHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts, ok := parseEventListOptions(w, r)
	if !ok {
		return
	}

	var (
		page *model.EventListPage
		err  error
	)
	if r.URL.Query().Get("view") == "managed" {
		page, err = h.events.ListManaged(r.Context(), ActorFromContext(r.Context()), opts)
	} else {
		page, err = h.events.List(r.Context(), opts)
	}
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}

	resp := eventListResponse{Events: page.Events}
	if page.NextCursor != nil {
		token, encErr := data.EncodeEventCursor(page.NextCursor)
		if encErr != nil {
			WriteServiceError(w, r, h.logger, encErr)
			return
		}
		resp.NextCursor = &token
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Submit handles POST /api/events. Events land in pending status for
// moderation; the owner's plan caps submissions per month.
func (h *EventHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	event, err := h.events.Submit(r.Context(), ActorFromContext(r.Context()), &req)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, event)
}

// Get handles GET /api/events/{id}. Pending and rejected events read as
// not-found to anyone but the creator, the business owner, and admins.
func (h *EventHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	event, err := h.events.GetByID(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, event)
}

// Update handles PATCH /api/events/{id}. Material changes to an approved
// event send it back through moderation.
func (h *EventHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req model.UpdateEventRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	event, err := h.events.Update(r.Context(), ActorFromContext(r.Context()), id, req)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, event)
}

// Cancel handles DELETE /api/events/{id}. Cancelling withdraws the event and
// drops its queued reminder jobs; the row is kept for history.
func (h *EventHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	event, err := h.events.Cancel(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, event)
}

// moderationNoteRequest is the optional body for the moderation endpoints.
type moderationNoteRequest struct {
	Note *string `json:"note,omitempty"`
}

// Approve handles POST /api/events/{id}/approve. Admin only.
func (h *EventHandlers) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, true)
}

// Reject handles POST /api/events/{id}/reject. Admin only.
func (h *EventHandlers) Reject(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, false)
}

func (h *EventHandlers) moderate(w http.ResponseWriter, r *http.Request, approve bool) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var note moderationNoteRequest
	if err := decodeOptionalJSON(r, &note); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return
	}

	event, err := h.events.Moderate(r.Context(), ActorFromContext(r.Context()), id, model.ModerateEventRequest{
		Approve: approve,
		Note:    note.Note,
	})
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, event)
}

// MapData handles GET /api/events/map-data: the lean marker payload for map
// clients, cached per viewport. The service returns pre-encoded JSON so
// cache hits skip marshalling.
func (h *EventHandlers) MapData(w http.ResponseWriter, r *http.Request) {
	opts, ok := parseEventListOptions(w, r)
	if !ok {
		return
	}

	payload, err := h.events.MapData(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// decodeOptionalJSON decodes a request body that may be empty.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parseEventListOptions(w http.ResponseWriter, r *http.Request) (model.EventListOptions, bool) {
	q := r.URL.Query()
	opts := model.EventListOptions{Limit: parseIntQuery(r, "limit", 0)}

	if token := q.Get("cursor"); token != "" {
		cursor, err := data.DecodeEventCursor(token)
		if err != nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_cursor",
				Err:     errors.New("cursor is not valid"),
			})
			return opts, false
		}
		opts.After = cursor
	}

	if v := q.Get("status"); v != "" {
		status, ok := model.ParseEventStatus(v)
		if !ok {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_query",
				Err:     fmt.Errorf("unknown status %q", v),
			})
			return opts, false
		}
		opts.Status = &status
	}

	if v := q.Get("category_id"); v != "" {
		opts.CategoryID = &v
	}
	if v := q.Get("business_id"); v != "" {
		opts.BusinessID = &v
	} else if businessID := BusinessFromContext(r.Context()); businessID != "" {
		// Serving from a business subdomain scopes the listing to that
		// business unless the caller filtered explicitly.
		opts.BusinessID = &businessID
	}
	if v := q.Get("q"); v != "" {
		opts.Q = &v
	}

	var ok bool
	if opts.StartAfter, ok = parseTimeQuery(w, q, "start_after"); !ok {
		return opts, false
	}
	if opts.StartUntil, ok = parseTimeQuery(w, q, "start_until"); !ok {
		return opts, false
	}
	if opts.Bounds, ok = parseBoundsQuery(w, q); !ok {
		return opts, false
	}
	return opts, true
}

func parseTimeQuery(w http.ResponseWriter, q url.Values, key string) (*time.Time, bool) {
	v := q.Get(key)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_query",
			Err:     fmt.Errorf("%s must be a valid RFC 3339 timestamp", key),
		})
		return nil, false
	}
	return &t, true
}

// parseBoundsQuery reads the viewport params. All four must be present
// together or omitted together.
func parseBoundsQuery(w http.ResponseWriter, q url.Values) (*model.BoundingBox, bool) {
	keys := [4]string{"min_lat", "max_lat", "min_lng", "max_lng"}
	var values [4]float64
	present := 0
	for i, key := range keys {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_query",
				Err:     fmt.Errorf("%s must be a valid number", key),
			})
			return nil, false
		}
		values[i] = f
		present++
	}

	switch present {
	case 0:
		return nil, true
	case len(keys):
		return &model.BoundingBox{
			MinLat: values[0],
			MaxLat: values[1],
			MinLng: values[2],
			MaxLng: values[3],
		}, true
	default:
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_query",
			Err:     errors.New("bounds require min_lat, max_lat, min_lng and max_lng together"),
		})
		return nil, false
	}
}

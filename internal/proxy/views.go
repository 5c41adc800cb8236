package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/hotel"
	"github.com/UnknownOlympus/hotelgate/internal/listing"
	"github.com/UnknownOlympus/hotelgate/internal/models"
	"github.com/UnknownOlympus/hotelgate/internal/upstream"
)

var errUnknownResource = errors.New("unknown resource")

// newController builds the list screen of one session. Booking pages get room numbers and
// status labels before they reach the controller.
func (h *Handler) newController(owner, name string) (*listing.Controller, error) {
	res, ok := h.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownResource, name)
	}
	backend := upstream.Authorized{Backend: h.backend, Token: owner}
	rooms := hotel.NewRoomLookup(backend)

	loader := listing.LoaderFunc(func(ctx context.Context, pageNumber, pageSize int) envelope.Envelope {
		env := backend.Do(ctx, upstream.Request{
			Path: res.ActionPath("GetAll"),
			Query: url.Values{
				"PageNumber": {strconv.Itoa(pageNumber)},
				"PageSize":   {strconv.Itoa(pageSize)},
			},
		})
		if !env.Success || res.Name != "bookings" {
			return env
		}
		page, err := listing.ParsePage(env.Data)
		if err != nil {
			return env
		}
		hotel.EnrichRoomNumbers(ctx, h.log, page.Items, rooms)
		hotel.DecorateBookings(page.Items)
		return envelope.Ok(page, env.StatusCode)
	})

	return listing.NewController(h.log, loader, listing.Options{
		Schema:        res.Schema,
		PageSize:      h.opts.PageSize,
		RetryAttempts: h.opts.RetryAttempts,
		RetryBackoff:  h.opts.RetryBackoff,
		OnSettled: func(state listing.State) {
			h.metrics.ViewFetches.WithLabelValues(res.Name, state.String()).Inc()
		},
	}), nil
}

// controller resolves the resource of the route and the caller's controller for it.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (hotel.Resource, *listing.Controller, bool) {
	name := r.PathValue("resource")
	res, ok := h.catalog.Lookup(name)
	if !ok {
		h.fail(w, r, http.StatusNotFound, "error.unknown_resource", map[string]any{"resource": name})
		return hotel.Resource{}, nil, false
	}
	ctrl, err := h.views.Get(sessionFrom(r.Context()).Token, res.Name)
	if err != nil {
		h.internalError(w, r, "Failed to open view", err)
		return hotel.Resource{}, nil, false
	}
	return res, ctrl, true
}

// handleView applies paging and filters from the query and returns the screen.
// A page size change resets to page one and takes precedence over the page number.
func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	_, ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	pageNumber, pageErr := optionalInt(query, "page")
	pageSize, sizeErr := optionalInt(query, "size")
	if pageErr != nil || sizeErr != nil {
		h.fail(w, r, http.StatusBadRequest, "view.invalid_page", nil)
		return
	}
	filter, field, err := parseFilter(query)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "view.invalid_filter", map[string]any{"field": field})
		return
	}
	ctrl.SetFilter(filter)

	ctx := r.Context()
	switch {
	case pageSize != 0 && pageSize != ctrl.RequestedPageSize():
		err = ctrl.SetPageSize(ctx, pageSize)
	case pageNumber != 0:
		err = ctrl.SetPage(ctx, pageNumber)
	}
	if err == nil {
		err = ctrl.Load(ctx)
	}
	h.respondView(w, r, ctrl, err)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	_, ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	h.respondView(w, r, ctrl, ctrl.Refresh(r.Context()))
}

func (h *Handler) respondView(w http.ResponseWriter, r *http.Request, ctrl *listing.Controller, err error) {
	if errors.Is(err, listing.ErrInvalidPage) {
		h.fail(w, r, http.StatusBadRequest, "view.invalid_page", nil)
		return
	}

	view := ctrl.View()
	env := envelope.Ok(view, http.StatusOK)
	if view.State == listing.Error {
		env.Success = false
		env.Message = view.Message
		env.StatusCode = http.StatusBadGateway
		var envErr *envelope.Error
		if errors.As(err, &envErr) && envErr.StatusCode != 0 {
			env.StatusCode = envErr.StatusCode
		}
	}
	writeEnvelope(w, env)
}

func (h *Handler) handleViewItem(w http.ResponseWriter, r *http.Request) {
	_, ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	rec, found := ctrl.Record(r.PathValue("id"))
	if !found {
		h.fail(w, r, http.StatusNotFound, "view.not_found", nil)
		return
	}
	writeEnvelope(w, envelope.Ok(rec, http.StatusOK))
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	res, ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	backend := upstream.Authorized{Backend: h.backend, Token: sessionFrom(r.Context()).Token}
	env := ctrl.Delete(r.Context(), r.PathValue("id"), func(ctx context.Context, id string) envelope.Envelope {
		return backend.Do(ctx, upstream.Request{
			Method: http.MethodDelete,
			Path:   res.ActionPath("Delete"),
			Query:  url.Values{"id": {id}},
		})
	})
	writeEnvelope(w, env)
}

func (h *Handler) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	res, ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	id, field := r.PathValue("id"), r.URL.Query().Get("field")
	if field == "" {
		h.fail(w, r, http.StatusBadRequest, "validation.required", map[string]any{"fields": "field"})
		return
	}
	rec, found := ctrl.Record(id)
	if !found {
		h.fail(w, r, http.StatusNotFound, "view.not_found", nil)
		return
	}
	if _, isBool := rec[field].(bool); !isBool {
		h.fail(w, r, http.StatusBadRequest, "view.not_boolean", map[string]any{"field": field})
		return
	}
	writeEnvelope(w, ctrl.Toggle(r.Context(), id, field, h.saver(r, res)))
}

func (h *Handler) handleSaveItem(w http.ResponseWriter, r *http.Request) {
	res, ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var changes listing.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&changes); err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_body", nil)
		return
	}
	id := r.PathValue("id")
	if _, found := ctrl.Record(id); !found {
		h.fail(w, r, http.StatusNotFound, "view.not_found", nil)
		return
	}
	writeEnvelope(w, ctrl.Save(r.Context(), id, changes, h.saver(r, res)))
}

// saver validates a full row against the Update requirements and sends it to the backend.
// Invalid rows never leave the gateway.
func (h *Handler) saver(r *http.Request, res hotel.Resource) func(ctx context.Context, rec listing.Record) envelope.Envelope {
	backend := upstream.Authorized{Backend: h.backend, Token: sessionFrom(r.Context()).Token}
	return func(ctx context.Context, rec listing.Record) envelope.Envelope {
		if missing := res.Missing(hotel.ActionUpdate, rec); len(missing) > 0 {
			return envelope.Fail(http.StatusBadRequest,
				h.text(r, "validation.required", map[string]any{"fields": strings.Join(missing, ", ")}))
		}
		return backend.Do(ctx, upstream.Request{
			Method: http.MethodPut,
			Path:   res.ActionPath(hotel.ActionUpdate),
			Body:   rec,
		})
	}
}

func optionalInt(query url.Values, key string) (int, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, listing.ErrInvalidPage
	}
	return n, nil
}

// parseFilter reads search, status and the from/to range. status accepts a code or a label.
// On error it returns the name of the offending parameter.
func parseFilter(query url.Values) (listing.Filter, string, error) {
	filter := listing.Filter{Search: query.Get("search")}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			status, ok := models.ParseBookingStatus(strings.ToLower(raw))
			if !ok {
				return listing.Filter{}, "status", err
			}
			code = int(status)
		}
		filter.Status = &code
	}

	var ok bool
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		if filter.From, ok = listing.ParseTime(raw); !ok {
			return listing.Filter{}, "from", fmt.Errorf("invalid from: %q", raw)
		}
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		if filter.To, ok = listing.ParseTime(raw); !ok {
			return listing.Filter{}, "to", fmt.Errorf("invalid to: %q", raw)
		}
	}
	return filter, "", nil
}

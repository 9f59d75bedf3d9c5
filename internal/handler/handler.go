package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cradoe/vestra/internal/errHandler"
	"github.com/cradoe/vestra/internal/response"
	"github.com/tomasen/realip"
)

type RouteHandler struct {
	ErrHandler *errHandler.ErrorRepository
	Pingers    map[string]func() error
}

func NewRouteHandler(handler *RouteHandler) *RouteHandler {
	return &RouteHandler{
		ErrHandler: handler.ErrHandler,
		Pingers:    handler.Pingers,
	}
}

func (h *RouteHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	for name, ping := range h.Pingers {
		if err := ping(); err != nil {
			checks[name] = "unavailable"
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	if !healthy {
		err := response.JSONErrorResponse(w, checks, "Some dependencies are unavailable", http.StatusServiceUnavailable, nil)
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
		}
		return
	}

	err := response.JSONOkResponse(w, checks, "Up and grateful", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *RouteHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.ErrHandler.NotFound(w, r)
}

type queryStringValues struct {
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
	Status    string
	Limit     int
	Offset    int
}

func retrieveUrlQueryValues(r *http.Request) *queryStringValues {
	var queryValues = &queryStringValues{}

	startDateStr := r.URL.Query().Get("start_date")
	if startDateStr != "" {
		parsedStart, err := time.Parse("2006-01-02", startDateStr)
		if err == nil {
			queryValues.StartDate = &parsedStart
		}
	}

	endDateStr := r.URL.Query().Get("end_date")
	if endDateStr != "" {
		parsedEnd, err := time.Parse("2006-01-02", endDateStr)
		if err == nil {
			queryValues.EndDate = &parsedEnd
		}
	}

	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("page")

	offset := 0
	limit := 10

	if limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = min(parsedLimit, 100)
		}
	}
	queryValues.Limit = limit

	if offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil && parsedOffset >= 1 {
			offset = (parsedOffset - 1) * limit
		}
	}
	queryValues.Offset = offset

	queryValues.Search = r.URL.Query().Get("search")
	queryValues.Status = r.URL.Query().Get("status")

	return queryValues
}

func clientIP(r *http.Request) string {
	return realip.FromRequest(r)
}

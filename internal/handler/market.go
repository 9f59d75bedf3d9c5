package handler

import (
	"errors"
	"net/http"

	"github.com/cradoe/vestra/internal/errHandler"
	"github.com/cradoe/vestra/internal/market"
	"github.com/cradoe/vestra/internal/response"
)

type MarketHandler struct {
	Market     *market.Client
	ErrHandler *errHandler.ErrorRepository
}

func NewMarketHandler(handler *MarketHandler) *MarketHandler {
	return &MarketHandler{
		Market:     handler.Market,
		ErrHandler: handler.ErrHandler,
	}
}

func (h *MarketHandler) HandleListings(w http.ResponseWriter, r *http.Request) {
	body, err := h.Market.Listings(r.Context())
	if err != nil {
		h.marketError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, body, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *MarketHandler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	query := market.PriceQuery{
		Coin:     r.URL.Query().Get("coin"),
		Days:     r.URL.Query().Get("days"),
		Currency: r.URL.Query().Get("currency"),
	}

	body, err := h.Market.Price(r.Context(), query)
	if err != nil {
		h.marketError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, body, "Data retrieved successfully", nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *MarketHandler) marketError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, market.ErrRateLimited):
		h.ErrHandler.TooManyRequests(w, r, market.ErrRateLimited.Error())
	case errors.Is(err, market.ErrInvalidQuery):
		h.ErrHandler.FailedValidation(w, r, []string{"coin, days or currency is invalid"})
	default:
		h.ErrHandler.ServerError(w, r, err)
	}
}

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chriscow/voicemart/pkg/cart"
	"github.com/chriscow/voicemart/pkg/catalog"
)

type cartResponse struct {
	Items []cart.Item `json:"items"`
	Count int         `json:"count"`
	Total float64     `json:"total"`
}

type addRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	snap, err := s.cfg.Catalog.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.writeCart(w, r, http.StatusOK)
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, err := catalog.Lookup(r.Context(), s.cfg.Catalog, req.ProductID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.cfg.Cart.Add(r.Context(), p, req.Quantity); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeCart(w, r, http.StatusCreated)
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.cfg.Cart.UpdateQuantity(r.Context(), chi.URLParam(r, "productID"), req.Quantity); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeCart(w, r, http.StatusOK)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Cart.Remove(r.Context(), chi.URLParam(r, "productID")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeCart(w, r, http.StatusOK)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Cart.Clear(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeCart(w, r, http.StatusOK)
}

func (s *Server) writeCart(w http.ResponseWriter, r *http.Request, status int) {
	items, err := s.cfg.Cart.Items(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if items == nil {
		items = []cart.Item{}
	}
	count, total := cart.Totals(items)
	writeJSON(w, status, cartResponse{Items: items, Count: count, Total: total})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

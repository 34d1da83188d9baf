package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-inventory/internal/analytics"
	"ms-inventory/internal/logger"
	"ms-inventory/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes mounts the aggregation endpoints. All of them are
// read-only snapshots over the ticket store.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/events/{eventId}", func(r chi.Router) {
		r.Get("/revenue", h.EventRevenue)
		r.Get("/statistics", h.EventStatistics)
	})
	r.Route("/organizers/{organizerId}", func(r chi.Router) {
		r.Get("/revenue", h.OrganizerRevenue)
		r.Get("/sold", h.OrganizerSoldTickets)
		r.Get("/best-ticket-type", h.OrganizerBestTicketType)
	})
}

func (h *Handler) EventRevenue(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	revenue, err := h.Service.GetEventRevenue(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("revenue query failed for event %s: %v", eventID, err))
		utils.WriteError(w, "failed to compute event revenue", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(revenue)
}

func (h *Handler) EventStatistics(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	stats, err := h.Service.GetEventStatistics(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("statistics query failed for event %s: %v", eventID, err))
		utils.WriteError(w, "failed to compute event statistics", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *Handler) OrganizerRevenue(w http.ResponseWriter, r *http.Request) {
	organizerID := chi.URLParam(r, "organizerId")

	revenue, err := h.Service.GetOrganizerRevenue(r.Context(), organizerID)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("revenue query failed for organizer %s: %v", organizerID, err))
		utils.WriteError(w, "failed to compute organizer revenue", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(revenue)
}

func (h *Handler) OrganizerSoldTickets(w http.ResponseWriter, r *http.Request) {
	organizerID := chi.URLParam(r, "organizerId")

	sold, err := h.Service.GetOrganizerSoldTickets(r.Context(), organizerID)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("sold-ticket query failed for organizer %s: %v", organizerID, err))
		utils.WriteError(w, "failed to count sold tickets", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sold)
}

func (h *Handler) OrganizerBestTicketType(w http.ResponseWriter, r *http.Request) {
	organizerID := chi.URLParam(r, "organizerId")

	best, err := h.Service.GetOrganizerBestTicketType(r.Context(), organizerID)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("best-type query failed for organizer %s: %v", organizerID, err))
		utils.WriteError(w, "failed to determine best ticket type", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(best)
}

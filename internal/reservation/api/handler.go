package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-inventory/internal/apperror"
	"ms-inventory/internal/logger"
	"ms-inventory/internal/models"
	"ms-inventory/internal/reservation"
	"ms-inventory/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *reservation.Service
	Logger  *logger.Logger
}

func NewHandler(service *reservation.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes mounts the ticket lifecycle endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tickets", func(r chi.Router) {
		r.Post("/", h.BuyTicket)
		r.Get("/{ticketId}", h.GetTicket)
		r.Patch("/{ticketId}/status", h.SetTicketStatus)
	})
	r.Get("/users/{userId}/tickets", h.ListTicketsForUser)
}

func (h *Handler) BuyTicket(w http.ResponseWriter, r *http.Request) {
	var req reservation.BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "invalid request body",
			apperror.Wrap(apperror.InvalidArgument, err, "malformed purchase request"))
		return
	}

	ticketID, err := h.Service.Buy(r.Context(), req)
	if err != nil {
		h.Logger.Error("RESERVE", fmt.Sprintf("purchase failed for event %s: %v", req.EventID, err))
		utils.WriteError(w, "failed to buy ticket", err)
		return
	}

	h.Logger.LogReservation("BUY", ticketID, fmt.Sprintf("event %s quantity %d", req.EventID, req.Quantity))
	utils.WriteJSON(w, http.StatusCreated, "ticket reserved", map[string]string{"ticket_id": ticketID})
}

func (h *Handler) SetTicketStatus(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, "invalid request body",
			apperror.Wrap(apperror.InvalidArgument, err, "malformed status request"))
		return
	}

	status, err := models.ParseTicketStatus(body.Status)
	if err != nil {
		utils.WriteError(w, "invalid status",
			apperror.Wrap(apperror.InvalidArgument, err, "unknown status %q", body.Status))
		return
	}

	if err := h.Service.SetStatus(r.Context(), ticketID, status); err != nil {
		h.Logger.Error("RESERVE", fmt.Sprintf("status change failed for ticket %s: %v", ticketID, err))
		utils.WriteError(w, "failed to update ticket status", err)
		return
	}

	h.Logger.LogReservation("STATUS", ticketID, "moved to "+string(status))
	utils.WriteJSON(w, http.StatusOK, "ticket status updated", map[string]string{
		"ticket_id": ticketID,
		"status":    string(status),
	})
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")

	ticket, err := h.Service.GetTicket(r.Context(), ticketID)
	if err != nil {
		utils.WriteError(w, "ticket not found", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ticket)
}

func (h *Handler) ListTicketsForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	tickets, err := h.Service.TicketsByUser(r.Context(), userID)
	if err != nil {
		utils.WriteError(w, "failed to fetch tickets", err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tickets)
}

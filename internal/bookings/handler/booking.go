package handler

import (
	"encoding/json"
	"net/http"

	"roomly/internal/bookings/service"
	apperrors "roomly/pkg/errors"
	httputil "roomly/pkg/http"
	"roomly/pkg/logger"
	"roomly/pkg/middleware"
	"roomly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	actor := middleware.IdentityFrom(r.Context())
	result, err := h.service.Create(r.Context(), actor, &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *BookingHandler) ListMy(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor := middleware.IdentityFrom(r.Context())
	if actor.Anonymous() {
		h.writeError(w, "ListMy", apperrors.Unauthorized("Authentication required"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMy", err)
		return
	}

	// Upcoming own bookings are the default view; future_only=false widens
	// it to history.
	futureOnly := true
	if r.URL.Query().Has("future_only") {
		futureOnly = httputil.ExtractBoolParam(r, "future_only")
	}

	status := r.URL.Query().Get("status")
	if !validStatusFilter(status) {
		h.writeError(w, "ListMy", apperrors.InvalidInput("status must be one of: active, cancelled, all"))
		return
	}

	bookings, total, err := h.service.ListUserBookings(r.Context(), actor.UserID, status, futureOnly, limit, offset)
	if err != nil {
		h.writeError(w, "ListMy", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMy", "error", err)
	}
}

func (h *BookingHandler) CancelByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor := middleware.IdentityFrom(r.Context())
	if err := h.service.CancelByID(r.Context(), actor, ps.ByName("id")); err != nil {
		h.writeError(w, "CancelByID", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *BookingHandler) GetByToken(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := h.service.GetByToken(r.Context(), ps.ByName("token"))
	if err != nil {
		h.writeError(w, "GetByToken", err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByToken", "error", err)
	}
}

func (h *BookingHandler) CancelByToken(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.CancelByToken(r.Context(), ps.ByName("token")); err != nil {
		h.writeError(w, "CancelByToken", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *BookingHandler) AdminList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor := middleware.IdentityFrom(r.Context())
	if !actor.Admin {
		h.writeError(w, "AdminList", apperrors.Forbidden("Admin access required"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "AdminList", err)
		return
	}

	query := r.URL.Query()
	status := query.Get("status")
	if !validStatusFilter(status) {
		h.writeError(w, "AdminList", apperrors.InvalidInput("status must be one of: active, cancelled, all"))
		return
	}

	filter := model.BookingFilter{
		RoomID:     query.Get("room_id"),
		UserID:     query.Get("user_id"),
		Status:     status,
		DateFrom:   query.Get("date_from"),
		DateTo:     query.Get("date_to"),
		FutureOnly: httputil.ExtractBoolParam(r, "future_only"),
	}

	bookings, total, err := h.service.ListAllBookings(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "AdminList", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "AdminList", "error", err)
	}
}

func (h *BookingHandler) AdminCancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor := middleware.IdentityFrom(r.Context())
	if !actor.Admin {
		h.writeError(w, "AdminCancel", apperrors.Forbidden("Admin access required"))
		return
	}

	if err := h.service.CancelByID(r.Context(), actor, ps.ByName("id")); err != nil {
		h.writeError(w, "AdminCancel", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "error", writeErr)
	}
}

func validStatusFilter(status string) bool {
	switch status {
	case "", "all", model.StatusActive, model.StatusCancelled:
		return true
	}
	return false
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/my", h.ListMy)
	router.DELETE("/api/v1/bookings/:id", h.CancelByID)

	router.GET("/api/v1/cancel/:token", h.GetByToken)
	router.DELETE("/api/v1/cancel/:token", h.CancelByToken)

	router.GET("/api/v1/admin/bookings", h.AdminList)
	router.DELETE("/api/v1/admin/bookings/:id", h.AdminCancel)
}

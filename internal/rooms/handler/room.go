package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"roomly/internal/rooms/service"
	apperrors "roomly/pkg/errors"
	httputil "roomly/pkg/http"
	"roomly/pkg/logger"
	"roomly/pkg/middleware"
	"roomly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type RoomHandler struct {
	service service.RoomService
	log     *logger.Logger
}

func NewRoomHandler(service service.RoomService, log *logger.Logger) *RoomHandler {
	return &RoomHandler{
		service: service,
		log:     log,
	}
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor := middleware.IdentityFrom(r.Context())
	if !actor.Admin {
		h.writeError(w, "Create", apperrors.Forbidden("Admin access required"))
		return
	}

	var room model.Room
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	created, err := h.service.Create(r.Context(), actor, &room)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, created); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *RoomHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, room); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor := middleware.IdentityFrom(r.Context())
	if actor.Anonymous() {
		h.writeError(w, "List", apperrors.Unauthorized("Authentication required"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	filter, err := extractRoomFilter(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	rooms, total, err := h.service.List(r.Context(), actor, filter, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, rooms, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "error", err)
	}
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor := middleware.IdentityFrom(r.Context())
	if !actor.Admin {
		h.writeError(w, "Update", apperrors.Forbidden("Admin access required"))
		return
	}

	var updates model.RoomUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, "Update", apperrors.InvalidInput("Invalid request body"))
		return
	}

	room, err := h.service.Update(r.Context(), ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, room); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "error", err)
	}
}

func (h *RoomHandler) Deactivate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor := middleware.IdentityFrom(r.Context())
	if !actor.Admin {
		h.writeError(w, "Deactivate", apperrors.Forbidden("Admin access required"))
		return
	}

	if err := h.service.Deactivate(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Deactivate", err)
		return
	}
	httputil.WriteNoContent(w)
}

func extractRoomFilter(r *http.Request) (model.RoomFilter, error) {
	query := r.URL.Query()
	filter := model.RoomFilter{}

	if s := query.Get("is_active"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return filter, apperrors.InvalidInput("invalid is_active parameter: " + s)
		}
		filter.IsActive = &v
	}

	for name, dst := range map[string]**int{
		"capacity_min": &filter.CapacityMin,
		"capacity_max": &filter.CapacityMax,
		"floor":        &filter.Floor,
	} {
		if s := query.Get(name); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return filter, apperrors.InvalidInput("invalid " + name + " parameter: " + s)
			}
			*dst = &v
		}
	}

	return filter, nil
}

func (h *RoomHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "error", writeErr)
	}
}

func (h *RoomHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/rooms", h.List)
	router.POST("/api/v1/rooms", h.Create)
	router.GET("/api/v1/rooms/:id", h.GetByID)
	router.PATCH("/api/v1/rooms/:id", h.Update)
	router.DELETE("/api/v1/rooms/:id", h.Deactivate)
}

package service

import (
	"context"
	"errors"
	"time"

	"roomly/internal/rooms/repository"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/logger"
	"roomly/pkg/model"
	"roomly/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// RoomService manages room metadata. It is a collaborator of the scheduling
// engine, never a participant in admission; bookings only read rooms.
type RoomService interface {
	Create(ctx context.Context, actor model.Identity, room *model.Room) (*model.Room, error)
	GetByID(ctx context.Context, id string) (*model.Room, error)
	List(ctx context.Context, actor model.Identity, filter model.RoomFilter, limit int, offset int64) ([]*model.Room, int64, error)
	Update(ctx context.Context, id string, updates *model.RoomUpdate) (*model.Room, error)
	Deactivate(ctx context.Context, id string) error
}

type roomService struct {
	repo     repository.RoomRepository
	validate *validator.Validate
	cfg      *config.Config
	log      *logger.Logger
}

func NewRoomService(repo repository.RoomRepository, cfg *config.Config) RoomService {
	return &roomService{
		repo:     repo,
		validate: validator.New(),
		cfg:      cfg,
		log:      cfg.Log,
	}
}

func (s *roomService) Create(ctx context.Context, actor model.Identity, room *model.Room) (*model.Room, error) {
	room.ID = uuid.NewString()
	room.Name = sanitizer.NormalizeName(room.Name)
	room.Equipment = sanitizer.NormalizeLabels(room.Equipment)
	room.Description = sanitizer.TrimAndNormalize(room.Description)
	room.IsActive = true
	room.CreatedAt = time.Now()
	room.CreatedBy = actor.UserID

	if err := s.validate.Struct(room); err != nil {
		return nil, apperrors.Validation("Room validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, apperrors.Conflict("A room with this name already exists")
		}
		return nil, apperrors.Internal("Failed to create room", err)
	}

	s.log.Info("Room created", "room_id", room.ID, "name", room.Name)
	return room, nil
}

func (s *roomService) GetByID(ctx context.Context, id string) (*model.Room, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Room", id)
		}
		return nil, apperrors.Internal("Failed to retrieve room", err)
	}
	return room, nil
}

// List hides inactive rooms from non-admin callers regardless of the
// requested filter.
func (s *roomService) List(ctx context.Context, actor model.Identity, filter model.RoomFilter, limit int, offset int64) ([]*model.Room, int64, error) {
	if !actor.Admin {
		active := true
		filter.IsActive = &active
	}

	count, err := s.repo.Count(ctx, filter)
	if err != nil {
		s.log.Error("Failed to count rooms", "error", err)
		return nil, 0, apperrors.Internal("Failed to count rooms", err)
	}

	rooms, err := s.repo.FindAll(ctx, filter, limit, offset)
	if err != nil {
		s.log.Error("Failed to list rooms", "error", err)
		return nil, 0, apperrors.Internal("Failed to list rooms", err)
	}

	return rooms, count, nil
}

func (s *roomService) Update(ctx context.Context, id string, updates *model.RoomUpdate) (*model.Room, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}
	if err := s.validate.Struct(updates); err != nil {
		return nil, apperrors.Validation("Room update validation failed", map[string]any{"error": err.Error()})
	}

	set := bson.M{}
	if updates.Name != nil {
		set["name"] = sanitizer.NormalizeName(*updates.Name)
	}
	if updates.Capacity != nil {
		set["capacity"] = *updates.Capacity
	}
	if updates.Floor != nil {
		set["floor"] = *updates.Floor
	}
	if updates.Equipment != nil {
		set["equipment"] = sanitizer.NormalizeLabels(*updates.Equipment)
	}
	if updates.Description != nil {
		set["description"] = sanitizer.TrimAndNormalize(*updates.Description)
	}
	if updates.IsActive != nil {
		set["is_active"] = *updates.IsActive
	}
	if len(set) == 0 {
		return nil, apperrors.InvalidInput("No fields to update")
	}

	room, err := s.repo.Update(ctx, id, set)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Room", id)
		}
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, apperrors.Conflict("A room with this name already exists")
		}
		return nil, apperrors.Internal("Failed to update room", err)
	}

	s.log.Info("Room updated", "room_id", id)
	return room, nil
}

// Deactivate soft-deletes: bookings keep referencing the room, it just
// stops accepting new ones and drops out of non-admin listings.
func (s *roomService) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Room ID cannot be empty")
	}

	_, err := s.repo.Update(ctx, id, bson.M{"is_active": false})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundWithID("Room", id)
		}
		return apperrors.Internal("Failed to deactivate room", err)
	}

	s.log.Info("Room deactivated", "room_id", id)
	return nil
}

// Package booking handles student applications for rooms.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/adnan855570/Global-Dorm-App/internal/core/apperr"
	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
	"github.com/adnan855570/Global-Dorm-App/internal/core/validate"
	"github.com/adnan855570/Global-Dorm-App/internal/store"
)

type Store interface {
	Room(ctx context.Context, id string) (model.Room, error)
	InsertApplicationIfNone(ctx context.Context, userEmail, roomID string) (model.Application, error)
	ApplicationsByUser(ctx context.Context, userEmail string) ([]model.Application, error)
	Application(ctx context.Context, id string) (model.Application, error)
	SetApplicationStatus(ctx context.Context, id string, from, to model.ApplicationStatus) (model.Application, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func New(s Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger}
}

// Apply records an application by user for a room. Only one applied
// application per user and room may exist at a time.
func (s *Service) Apply(ctx context.Context, user string, in model.ApplicationCreate) (model.Application, error) {
	if err := validate.Struct(in); err != nil {
		return model.Application{}, err
	}
	roomID, ok := parseID(in.RoomID)
	if !ok {
		return model.Application{}, apperr.New(apperr.KindInvalidIdentifier, "Invalid room ID")
	}
	if _, err := s.store.Room(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Application{}, apperr.New(apperr.KindNotFound, "Room not found")
		}
		return model.Application{}, err
	}
	a, err := s.store.InsertApplicationIfNone(ctx, user, roomID)
	if errors.Is(err, store.ErrDuplicate) {
		return model.Application{}, apperr.New(apperr.KindConflict, "Already applied for this room.")
	}
	if err != nil {
		return model.Application{}, err
	}
	s.logger.InfoContext(ctx, "application created", "application_id", a.ID, "room_id", roomID)
	return a, nil
}

func (s *Service) List(ctx context.Context, user string) ([]model.Application, error) {
	return s.store.ApplicationsByUser(ctx, user)
}

// Get returns the caller's application; someone else's reads as not found.
func (s *Service) Get(ctx context.Context, user, id string) (model.Application, error) {
	id, ok := parseID(id)
	if !ok {
		return model.Application{}, apperr.New(apperr.KindInvalidIdentifier, "Invalid application ID")
	}
	a, err := s.store.Application(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && a.UserEmail != user) {
		return model.Application{}, apperr.New(apperr.KindNotFound, "Application not found")
	}
	if err != nil {
		return model.Application{}, err
	}
	return a, nil
}

func (s *Service) Cancel(ctx context.Context, user, id string) (model.Application, error) {
	a, err := s.Get(ctx, user, id)
	if err != nil {
		return model.Application{}, err
	}
	if a.Status == model.StatusCancelled {
		return model.Application{}, apperr.New(apperr.KindInvalidState, "Application already cancelled")
	}
	out, err := s.store.SetApplicationStatus(ctx, a.ID, model.StatusApplied, model.StatusCancelled)
	switch {
	case errors.Is(err, store.ErrStatus):
		return model.Application{}, apperr.New(apperr.KindInvalidState, "Application already cancelled")
	case errors.Is(err, store.ErrNotFound):
		return model.Application{}, apperr.New(apperr.KindNotFound, "Application not found")
	case err != nil:
		return model.Application{}, err
	}
	s.logger.InfoContext(ctx, "application cancelled", "application_id", out.ID)
	return out, nil
}

func parseID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	_, err := uuid.Parse(id)
	return id, err == nil
}

// Package listing manages rooms offered on the marketplace.
package listing

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/adnan855570/Global-Dorm-App/internal/cache/keys"
	"github.com/adnan855570/Global-Dorm-App/internal/core/apperr"
	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
	"github.com/adnan855570/Global-Dorm-App/internal/core/validate"
	"github.com/adnan855570/Global-Dorm-App/internal/invalidation"
	"github.com/adnan855570/Global-Dorm-App/internal/store"
)

type RoomStore interface {
	InsertRoom(ctx context.Context, r model.Room) (model.Room, error)
	Rooms(ctx context.Context) ([]model.Room, error)
	Room(ctx context.Context, id string) (model.Room, error)
	UpdateRoom(ctx context.Context, id string, u model.RoomUpdate) (prev, updated model.Room, err error)
	DeleteRoom(ctx context.Context, id string) error
}

type Invalidator interface {
	Invalidate(ctx context.Context, op string, keys ...string)
}

type Service struct {
	rooms  RoomStore
	inv    Invalidator
	logger *slog.Logger
}

func New(rooms RoomStore, inv Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{rooms: rooms, inv: inv, logger: logger}
}

func (s *Service) Create(ctx context.Context, owner string, in model.RoomCreate) (model.Room, error) {
	if err := validate.Struct(in); err != nil {
		return model.Room{}, err
	}
	r, err := s.rooms.InsertRoom(ctx, model.Room{
		Title:         in.Title,
		Description:   in.Description,
		Address:       in.Address,
		PricePerMonth: in.PricePerMonth,
		Postcode:      in.Postcode,
		OwnerEmail:    owner,
	})
	if err != nil {
		return model.Room{}, err
	}
	s.logger.InfoContext(ctx, "room created", "room_id", r.ID)
	return r, nil
}

func (s *Service) List(ctx context.Context) ([]model.Room, error) {
	return s.rooms.Rooms(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (model.Room, error) {
	id, err := parseID(id)
	if err != nil {
		return model.Room{}, err
	}
	r, err := s.rooms.Room(ctx, id)
	if err != nil {
		return model.Room{}, notFound(err)
	}
	return r, nil
}

// Update applies the non-nil fields of u. A postcode change drops the room's
// cached distance.
func (s *Service) Update(ctx context.Context, id string, u model.RoomUpdate) (model.Room, error) {
	id, err := parseID(id)
	if err != nil {
		return model.Room{}, err
	}
	if u.Empty() {
		return model.Room{}, apperr.New(apperr.KindValidation, "No data provided to update")
	}
	if err := validate.Struct(u); err != nil {
		return model.Room{}, err
	}
	before, r, err := s.rooms.UpdateRoom(ctx, id, u)
	if err != nil {
		return model.Room{}, notFound(err)
	}
	if keys.NormalizePostcode(before.Postcode) != keys.NormalizePostcode(r.Postcode) {
		s.inv.Invalidate(ctx, invalidation.OpUpdate, keys.Distance(id))
	}
	return r, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.rooms.DeleteRoom(ctx, id); err != nil {
		return notFound(err)
	}
	s.inv.Invalidate(ctx, invalidation.OpDelete, keys.Distance(id))
	s.logger.InfoContext(ctx, "room deleted", "room_id", id)
	return nil
}

func parseID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return "", apperr.New(apperr.KindInvalidIdentifier, "Invalid room ID")
	}
	return id, nil
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "Room not found")
	}
	return err
}

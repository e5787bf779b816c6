// Package lookup answers geocode and room-to-campus distance queries, putting the
// expiring cache in front of the postcodes and routing upstreams.
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/adnan855570/Global-Dorm-App/internal/cache"
	"github.com/adnan855570/Global-Dorm-App/internal/cache/codec"
	"github.com/adnan855570/Global-Dorm-App/internal/cache/keys"
	"github.com/adnan855570/Global-Dorm-App/internal/core/apperr"
	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
	"github.com/adnan855570/Global-Dorm-App/internal/store"
)

const DefaultCampusPostcode = "E1 4NS"

type Geocoder interface {
	Lookup(ctx context.Context, postcode string) (model.Coordinates, error)
}

type Router interface {
	Route(ctx context.Context, from, to model.Coordinates) (model.DistanceResult, error)
}

type RoomGetter interface {
	Room(ctx context.Context, id string) (model.Room, error)
}

type Deps struct {
	Cache          cache.Interface
	Geocoder       Geocoder
	Router         Router
	Rooms          RoomGetter
	CampusPostcode string
	TTL            time.Duration
	Logger         *slog.Logger
}

type Service struct {
	cache    cache.Interface
	geocoder Geocoder
	router   Router
	rooms    RoomGetter
	coords   *cache.Typed[model.Coordinates]
	dists    *cache.Typed[model.DistanceResult]
	campus   string
	ttl      time.Duration
	logger   *slog.Logger
}

func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	campus := d.CampusPostcode
	if strings.TrimSpace(campus) == "" {
		campus = DefaultCampusPostcode
	}
	ttl := d.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Service{
		cache:    d.Cache,
		geocoder: d.Geocoder,
		router:   d.Router,
		rooms:    d.Rooms,
		coords:   cache.NewTyped(d.Cache, codec.Msgpack[model.Coordinates]{}, "geocode", logger),
		dists:    cache.NewTyped(d.Cache, codec.Msgpack[model.DistanceResult]{}, "distance", logger),
		campus:   campus,
		ttl:      ttl,
		logger:   logger,
	}
}

// Geocode returns coordinates for postcode. Lookups are cached under the
// case-insensitive form; the upstream sees the caller's case with spaces removed.
func (s *Service) Geocode(ctx context.Context, postcode string) (model.Coordinates, error) {
	clean := keys.CleanPostcode(postcode)
	if clean == "" {
		return model.Coordinates{}, apperr.New(apperr.KindGeocodeFailure, "Could not geocode postcode")
	}
	key := keys.Geocode(postcode)
	if c, ok := s.coords.Get(ctx, key, s.ttl); ok {
		return c, nil
	}

	c, err := s.geocoder.Lookup(ctx, clean)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindGeocodeFailure {
			err = apperr.Wrap(apperr.KindGeocodeFailure, "Could not geocode postcode", err)
		}
		return model.Coordinates{}, err
	}
	s.coords.Set(ctx, key, c)
	return c, nil
}

// RoomDistanceToCampus returns the driving distance and duration from the room's
// postcode to the campus postcode.
func (s *Service) RoomDistanceToCampus(ctx context.Context, roomID string) (model.DistanceResult, error) {
	id := strings.TrimSpace(roomID)
	if _, err := uuid.Parse(id); err != nil {
		return model.DistanceResult{}, apperr.New(apperr.KindInvalidIdentifier, "Invalid room ID")
	}
	key := keys.Distance(id)
	if d, ok := s.dists.Get(ctx, key, s.ttl); ok {
		return d, nil
	}

	room, err := s.rooms.Room(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.DistanceResult{}, apperr.New(apperr.KindNotFound, "Room not found")
	}
	if err != nil {
		return model.DistanceResult{}, err
	}

	var from, to model.Coordinates
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.Geocode(gctx, room.Postcode)
		from = c
		return err
	})
	g.Go(func() error {
		c, err := s.Geocode(gctx, s.campus)
		to = c
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "distance geocode failed", "room_id", id, "err", err)
		return model.DistanceResult{}, apperr.Wrap(apperr.KindGeocodeFailure, "Failed to geocode postcodes", err)
	}

	d, err := s.router.Route(ctx, from, to)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindRoutingFailure {
			err = apperr.Wrap(apperr.KindRoutingFailure, "OSRM routing failed", err)
		}
		return model.DistanceResult{}, err
	}
	s.dists.Set(ctx, key, d)
	s.dropIfRoomChanged(ctx, key, id, room.Postcode)
	return d, nil
}

// dropIfRoomChanged re-reads the room after the distance was cached. An edit
// that committed before this read is seen here; one that commits after it
// invalidates the key itself, so no stale distance outlives the edit.
func (s *Service) dropIfRoomChanged(ctx context.Context, key, id, postcode string) {
	cur, err := s.rooms.Room(ctx, id)
	if err == nil && keys.NormalizePostcode(cur.Postcode) == keys.NormalizePostcode(postcode) {
		return
	}
	if err := s.cache.Del(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "drop stale distance failed", "key", key, "err", err)
	}
}

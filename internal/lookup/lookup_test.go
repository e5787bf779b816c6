package lookup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adnan855570/Global-Dorm-App/internal/cache/memstore"
	"github.com/adnan855570/Global-Dorm-App/internal/core/apperr"
	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
	"github.com/adnan855570/Global-Dorm-App/internal/store"
)

const roomID = "6f1c2a9e-3b4d-4e5f-8a7b-9c0d1e2f3a4b"

type fakeGeocoder struct {
	mu    sync.Mutex
	calls []string
	known map[string]model.Coordinates
}

func (f *fakeGeocoder) Lookup(_ context.Context, pc string) (model.Coordinates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pc)
	c, ok := f.known[pc]
	if !ok {
		return model.Coordinates{}, apperr.New(apperr.KindGeocodeFailure, "Could not geocode postcode")
	}
	return c, nil
}

func (f *fakeGeocoder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRouter struct {
	calls atomic.Int32
	res   model.DistanceResult
	err   error
	from  model.Coordinates
	to    model.Coordinates

	// when set, the first call signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeRouter) Route(_ context.Context, from, to model.Coordinates) (model.DistanceResult, error) {
	if f.calls.Add(1) == 1 && f.release != nil {
		close(f.entered)
		<-f.release
	}
	f.from, f.to = from, to
	return f.res, f.err
}

type fakeRooms struct {
	calls atomic.Int32
	mu    sync.Mutex
	rooms map[string]model.Room
}

func (f *fakeRooms) set(r model.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[r.ID] = r
}

func (f *fakeRooms) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
}

func (f *fakeRooms) Room(_ context.Context, id string) (model.Room, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return model.Room{}, store.ErrNotFound
	}
	return r, nil
}

var (
	campus = model.Coordinates{Latitude: 51.5225, Longitude: -0.0420}
	roomAt = model.Coordinates{Latitude: 51.5300, Longitude: -0.1200}
)

type fixture struct {
	svc    *Service
	geo    *fakeGeocoder
	router *fakeRouter
	rooms  *fakeRooms
	store  *memstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		geo: &fakeGeocoder{known: map[string]model.Coordinates{
			"E14NS": campus,
			"N19GU": roomAt,
		}},
		router: &fakeRouter{res: model.DistanceResult{DistanceMeters: 7345.2, DurationSeconds: 901.7}},
		rooms: &fakeRooms{rooms: map[string]model.Room{
			roomID: {ID: roomID, Title: "Room", Address: "1 Road", Postcode: "N1 9GU"},
		}},
		store: memstore.New(),
	}
	f.svc = New(Deps{
		Cache:    f.store,
		Geocoder: f.geo,
		Router:   f.router,
		Rooms:    f.rooms,
		TTL:      time.Minute,
	})
	return f
}

func TestGeocode_CachesByNormalizedPostcode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Geocode(ctx, " E1 4NS ")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if first != campus {
		t.Fatalf("coords=%+v", first)
	}
	if f.geo.calls[0] != "E14NS" {
		t.Fatalf("upstream got %q", f.geo.calls[0])
	}

	second, err := f.svc.Geocode(ctx, "e14ns")
	if err != nil {
		t.Fatalf("Geocode cached: %v", err)
	}
	if second != first {
		t.Fatalf("cached coords differ: %+v vs %+v", second, first)
	}
	if n := f.geo.count(); n != 1 {
		t.Fatalf("upstream calls=%d want 1", n)
	}
}

func TestGeocode_Failures(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Geocode(context.Background(), "ZZ9 9ZZ"); !errors.Is(err, apperr.ErrGeocodeFailure) {
		t.Fatalf("unknown postcode err=%v", err)
	}
	if _, err := f.svc.Geocode(context.Background(), "   "); !errors.Is(err, apperr.ErrGeocodeFailure) {
		t.Fatalf("blank postcode err=%v", err)
	}
	if n := f.geo.count(); n != 1 {
		t.Fatalf("blank postcode must not reach upstream; calls=%d", n)
	}
	// failures are not cached
	_, _ = f.svc.Geocode(context.Background(), "ZZ9 9ZZ")
	if n := f.geo.count(); n != 2 {
		t.Fatalf("calls=%d want 2", n)
	}
}

func TestRoomDistance_RoutesAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.RoomDistanceToCampus(ctx, roomID)
	if err != nil {
		t.Fatalf("RoomDistanceToCampus: %v", err)
	}
	if d != f.router.res {
		t.Fatalf("result=%+v", d)
	}
	if f.router.from != roomAt || f.router.to != campus {
		t.Fatalf("route from=%+v to=%+v", f.router.from, f.router.to)
	}

	again, err := f.svc.RoomDistanceToCampus(ctx, " "+roomID+" ")
	if err != nil || again != d {
		t.Fatalf("cached=(%+v,%v)", again, err)
	}
	// one read plus the post-write recheck
	if f.router.calls.Load() != 1 || f.rooms.calls.Load() != 2 || f.geo.count() != 2 {
		t.Fatalf("calls router=%d rooms=%d geo=%d", f.router.calls.Load(), f.rooms.calls.Load(), f.geo.count())
	}
}

func TestRoomDistance_InvalidIdentifierTouchesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RoomDistanceToCampus(context.Background(), "not-an-id")
	if !errors.Is(err, apperr.ErrInvalidIdentifier) {
		t.Fatalf("err=%v", err)
	}
	if f.rooms.calls.Load() != 0 || f.router.calls.Load() != 0 || f.geo.count() != 0 || f.store.Len() != 0 {
		t.Fatalf("invalid id reached a dependency")
	}
}

func TestRoomDistance_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RoomDistanceToCampus(context.Background(), "00000000-0000-4000-8000-000000000000")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestRoomDistance_GeocodeFailure(t *testing.T) {
	f := newFixture(t)
	f.rooms.rooms[roomID] = model.Room{ID: roomID, Postcode: "XX1 1XX"}
	_, err := f.svc.RoomDistanceToCampus(context.Background(), roomID)
	if !errors.Is(err, apperr.ErrGeocodeFailure) {
		t.Fatalf("err=%v", err)
	}
	if f.router.calls.Load() != 0 {
		t.Fatalf("router must not be called after geocode failure")
	}
}

func TestRoomDistance_RoutingFailureNotCached(t *testing.T) {
	f := newFixture(t)
	f.router.err = errors.New("boom")
	_, err := f.svc.RoomDistanceToCampus(context.Background(), roomID)
	if !errors.Is(err, apperr.ErrRoutingFailure) {
		t.Fatalf("err=%v", err)
	}

	f.router.err = nil
	if _, err := f.svc.RoomDistanceToCampus(context.Background(), roomID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if f.router.calls.Load() != 2 {
		t.Fatalf("router calls=%d want 2", f.router.calls.Load())
	}
}

// edit runs while the first route call is in flight, then the lookup finishes.
func distanceDuringEdit(t *testing.T, f *fixture, edit func()) {
	t.Helper()
	f.router.entered = make(chan struct{})
	f.router.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.RoomDistanceToCampus(context.Background(), roomID)
		done <- err
	}()
	select {
	case <-f.router.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("route call never started")
	}
	edit()
	// what the edit's invalidation does
	_ = f.store.Del(context.Background(), "distance:"+roomID)
	close(f.router.release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight lookup: %v", err)
	}
}

func TestRoomDistance_PostcodeChangeDuringLookupIsNotCached(t *testing.T) {
	f := newFixture(t)
	distanceDuringEdit(t, f, func() {
		f.rooms.set(model.Room{ID: roomID, Title: "Room", Address: "1 Road", Postcode: "E1 4NS"})
		f.router.res = model.DistanceResult{DistanceMeters: 120, DurationSeconds: 30}
	})

	d, err := f.svc.RoomDistanceToCampus(context.Background(), roomID)
	if err != nil {
		t.Fatalf("RoomDistanceToCampus: %v", err)
	}
	if d.DistanceMeters != 120 || f.router.calls.Load() != 2 {
		t.Fatalf("distance=%+v router calls=%d; stale value was cached", d, f.router.calls.Load())
	}
}

func TestRoomDistance_DeleteDuringLookupIsNotCached(t *testing.T) {
	f := newFixture(t)
	distanceDuringEdit(t, f, func() { f.rooms.remove(roomID) })

	if _, ok, _ := f.store.Get(context.Background(), "distance:"+roomID, time.Minute); ok {
		t.Fatalf("distance of a deleted room stayed cached")
	}
	_, err := f.svc.RoomDistanceToCampus(context.Background(), roomID)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err=%v want not found", err)
	}
}

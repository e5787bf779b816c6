// Package router maps the public HTTP API onto the domain services.
package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adnan855570/Global-Dorm-App/internal/auth"
	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
)

type Identity interface {
	Register(ctx context.Context, c model.Credentials) (model.UserPublic, error)
	Login(ctx context.Context, c model.Credentials) (model.AccessToken, error)
	Authenticate(token string) (string, error)
}

type Rooms interface {
	Create(ctx context.Context, owner string, in model.RoomCreate) (model.Room, error)
	List(ctx context.Context) ([]model.Room, error)
	Get(ctx context.Context, id string) (model.Room, error)
	Update(ctx context.Context, id string, u model.RoomUpdate) (model.Room, error)
	Delete(ctx context.Context, id string) error
}

type Applications interface {
	Apply(ctx context.Context, user string, in model.ApplicationCreate) (model.Application, error)
	List(ctx context.Context, user string) ([]model.Application, error)
	Get(ctx context.Context, user, id string) (model.Application, error)
	Cancel(ctx context.Context, user, id string) (model.Application, error)
}

type Lookups interface {
	Geocode(ctx context.Context, postcode string) (model.Coordinates, error)
	RoomDistanceToCampus(ctx context.Context, roomID string) (model.DistanceResult, error)
}

type CellIndexer interface {
	Cell(c model.Coordinates) (string, error)
}

type CollectionLister interface {
	Collections(ctx context.Context) ([]string, error)
}

type Deps struct {
	Logger       *slog.Logger
	Identity     Identity
	Rooms        Rooms
	Applications Applications
	Lookups      Lookups
	Cells        CellIndexer
	DB           CollectionLister
}

// Mount registers every API route on r.
func Mount(r chi.Router, d Deps) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &handlers{Deps: d}
	requireAuth := auth.RequireAuth(d.Identity, d.Logger)

	r.Get("/", h.root)
	r.Get("/db-status", h.dbStatus)
	r.With(requireAuth).Get("/protected", h.protected)

	r.Route("/users", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})

	r.Route("/rooms", func(r chi.Router) {
		r.Get("/", h.listRooms)
		r.Get("/{roomID}", h.getRoom)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", h.createRoom)
			r.Put("/{roomID}", h.updateRoom)
			r.Delete("/{roomID}", h.deleteRoom)
		})
	})

	r.Route("/applications", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", h.apply)
		r.Get("/", h.listApplications)
		r.Get("/{applicationID}", h.getApplication)
		r.Patch("/{applicationID}/cancel", h.cancelApplication)
	})

	r.Route("/external", func(r chi.Router) {
		r.Get("/geocode", h.geocode)
		r.Get("/room-distance", h.roomDistance)
	})
}

type handlers struct {
	Deps
}

func subject(r *http.Request) string {
	s, _ := auth.SubjectFromContext(r.Context())
	return s
}

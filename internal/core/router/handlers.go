package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
	"github.com/adnan855570/Global-Dorm-App/internal/core/respond"
)

func (h *handlers) root(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"message": "Welcome to Global Dorm API!"})
}

func (h *handlers) dbStatus(w http.ResponseWriter, r *http.Request) {
	if h.DB == nil {
		respond.Detail(w, http.StatusServiceUnavailable, "database not configured")
		return
	}
	colls, err := h.DB.Collections(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"ok": true, "collections": colls})
}

func (h *handlers) protected(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{
		"msg": "Hello " + subject(r) + ", you are authenticated!",
	})
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var in model.Credentials
	if !respond.Decode(w, r, &in) {
		return
	}
	u, err := h.Identity.Register(r.Context(), in)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var in model.Credentials
	if !respond.Decode(w, r, &in) {
		return
	}
	tok, err := h.Identity.Login(r.Context(), in)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, tok)
}

func (h *handlers) createRoom(w http.ResponseWriter, r *http.Request) {
	var in model.RoomCreate
	if !respond.Decode(w, r, &in) {
		return
	}
	room, err := h.Rooms.Create(r.Context(), subject(r), in)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, room)
}

func (h *handlers) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Rooms.List(r.Context())
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, rooms)
}

func (h *handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.Rooms.Get(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, room)
}

func (h *handlers) updateRoom(w http.ResponseWriter, r *http.Request) {
	var in model.RoomUpdate
	if !respond.Decode(w, r, &in) {
		return
	}
	room, err := h.Rooms.Update(r.Context(), chi.URLParam(r, "roomID"), in)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, room)
}

func (h *handlers) deleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.Rooms.Delete(r.Context(), chi.URLParam(r, "roomID")); err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) apply(w http.ResponseWriter, r *http.Request) {
	var in model.ApplicationCreate
	if !respond.Decode(w, r, &in) {
		return
	}
	a, err := h.Applications.Apply(r.Context(), subject(r), in)
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, a)
}

func (h *handlers) listApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.Applications.List(r.Context(), subject(r))
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, apps)
}

func (h *handlers) getApplication(w http.ResponseWriter, r *http.Request) {
	a, err := h.Applications.Get(r.Context(), subject(r), chi.URLParam(r, "applicationID"))
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

func (h *handlers) cancelApplication(w http.ResponseWriter, r *http.Request) {
	a, err := h.Applications.Cancel(r.Context(), subject(r), chi.URLParam(r, "applicationID"))
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

type geocodeResponse struct {
	model.Coordinates
	H3Cell string `json:"h3_cell,omitempty"`
}

func (h *handlers) geocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("postcode") {
		respond.Detail(w, http.StatusUnprocessableEntity, "postcode is required")
		return
	}
	c, err := h.Lookups.Geocode(r.Context(), q.Get("postcode"))
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	out := geocodeResponse{Coordinates: c}
	if h.Cells != nil {
		if cell, err := h.Cells.Cell(c); err == nil {
			out.H3Cell = cell
		} else {
			h.Logger.DebugContext(r.Context(), "h3 tagging skipped", "err", err)
		}
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h *handlers) roomDistance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("room_id") {
		respond.Detail(w, http.StatusUnprocessableEntity, "room_id is required")
		return
	}
	d, err := h.Lookups.RoomDistanceToCampus(r.Context(), q.Get("room_id"))
	if err != nil {
		respond.Error(w, r, h.Logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

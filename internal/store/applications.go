package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ostafen/clover"

	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
)

// InsertApplicationIfNone stores a new applied application for (user, room),
// or returns ErrDuplicate when one is already in the applied state.
func (d *DB) InsertApplicationIfNone(ctx context.Context, userEmail, roomID string) (model.Application, error) {
	if err := ctx.Err(); err != nil {
		return model.Application{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.db.Query(collApplications).Where(
		clover.Field("user_email").Eq(userEmail).
			And(clover.Field("room_id").Eq(roomID)).
			And(clover.Field("status").Eq(string(model.StatusApplied))),
	).Count()
	if err != nil {
		return model.Application{}, fmt.Errorf("count applications: %w", err)
	}
	if n > 0 {
		return model.Application{}, ErrDuplicate
	}

	a := model.Application{
		ID:        uuid.NewString(),
		UserEmail: userEmail,
		RoomID:    roomID,
		Status:    model.StatusApplied,
		AppliedAt: d.now().UTC(),
	}
	doc := clover.NewDocument()
	doc.Set("id", a.ID)
	doc.Set("user_email", a.UserEmail)
	doc.Set("room_id", a.RoomID)
	doc.Set("status", string(a.Status))
	doc.Set("applied_at", a.AppliedAt.Format(timeLayout))
	if _, err := d.db.InsertOne(collApplications, doc); err != nil {
		return model.Application{}, fmt.Errorf("insert application: %w", err)
	}
	return a, nil
}

func (d *DB) ApplicationsByUser(ctx context.Context, userEmail string) ([]model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := d.db.Query(collApplications).
		Where(clover.Field("user_email").Eq(userEmail)).
		Sort(clover.SortOption{Field: "applied_at", Direction: 1}).
		FindAll()
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	out := make([]model.Application, 0, len(docs))
	for _, doc := range docs {
		out = append(out, applicationFromDoc(doc))
	}
	return out, nil
}

func (d *DB) Application(ctx context.Context, id string) (model.Application, error) {
	if err := ctx.Err(); err != nil {
		return model.Application{}, err
	}
	doc, err := d.findOne(collApplications, "id", id)
	if err != nil {
		return model.Application{}, err
	}
	return applicationFromDoc(doc), nil
}

// SetApplicationStatus moves application id from status from to status to.
// It returns ErrNotFound when the application is missing and ErrStatus when
// its status is not from.
func (d *DB) SetApplicationStatus(ctx context.Context, id string, from, to model.ApplicationStatus) (model.Application, error) {
	if err := ctx.Err(); err != nil {
		return model.Application{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, err := d.findOne(collApplications, "id", id)
	if err != nil {
		return model.Application{}, err
	}
	if model.ApplicationStatus(getString(doc, "status")) != from {
		return model.Application{}, ErrStatus
	}
	if err := d.db.Query(collApplications).Where(clover.Field("id").Eq(id)).
		Update(map[string]interface{}{"status": string(to)}); err != nil {
		return model.Application{}, fmt.Errorf("update application %s: %w", id, err)
	}
	a := applicationFromDoc(doc)
	a.Status = to
	return a, nil
}

// fixed-width so the stored strings sort chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func applicationFromDoc(doc *clover.Document) model.Application {
	return model.Application{
		ID:        getString(doc, "id"),
		UserEmail: getString(doc, "user_email"),
		RoomID:    getString(doc, "room_id"),
		Status:    model.ApplicationStatus(getString(doc, "status")),
		AppliedAt: getTime(doc, "applied_at"),
	}
}

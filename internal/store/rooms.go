package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ostafen/clover"

	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
)

func (d *DB) InsertRoom(ctx context.Context, r model.Room) (model.Room, error) {
	if err := ctx.Err(); err != nil {
		return model.Room{}, err
	}
	r.ID = uuid.NewString()

	doc := clover.NewDocument()
	doc.Set("id", r.ID)
	doc.Set("title", r.Title)
	if r.Description != nil {
		doc.Set("description", *r.Description)
	}
	doc.Set("address", r.Address)
	doc.Set("price_per_month", r.PricePerMonth)
	doc.Set("postcode", r.Postcode)
	doc.Set("owner_email", r.OwnerEmail)
	doc.Set("created_at", d.now().UnixNano())
	if _, err := d.db.InsertOne(collRooms, doc); err != nil {
		return model.Room{}, fmt.Errorf("insert room: %w", err)
	}
	return r, nil
}

// Rooms lists every room in insertion order.
func (d *DB) Rooms(ctx context.Context) ([]model.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := d.db.Query(collRooms).Sort(clover.SortOption{Field: "created_at", Direction: 1}).FindAll()
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	out := make([]model.Room, 0, len(docs))
	for _, doc := range docs {
		out = append(out, roomFromDoc(doc))
	}
	return out, nil
}

func (d *DB) Room(ctx context.Context, id string) (model.Room, error) {
	if err := ctx.Err(); err != nil {
		return model.Room{}, err
	}
	doc, err := d.findOne(collRooms, "id", id)
	if err != nil {
		return model.Room{}, err
	}
	return roomFromDoc(doc), nil
}

// UpdateRoom applies the non-nil fields of u. It returns the room as it was
// just before the write and as stored after it, both read under the same lock.
func (d *DB) UpdateRoom(ctx context.Context, id string, u model.RoomUpdate) (prev, updated model.Room, err error) {
	if err := ctx.Err(); err != nil {
		return model.Room{}, model.Room{}, err
	}
	fields := map[string]interface{}{}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.Address != nil {
		fields["address"] = *u.Address
	}
	if u.PricePerMonth != nil {
		fields["price_per_month"] = *u.PricePerMonth
	}
	if u.Postcode != nil {
		fields["postcode"] = *u.Postcode
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	before, err := d.findOne(collRooms, "id", id)
	if err != nil {
		return model.Room{}, model.Room{}, err
	}
	if len(fields) > 0 {
		if err := d.db.Query(collRooms).Where(clover.Field("id").Eq(id)).Update(fields); err != nil {
			return model.Room{}, model.Room{}, fmt.Errorf("update room %s: %w", id, err)
		}
	}
	after, err := d.findOne(collRooms, "id", id)
	if err != nil {
		return model.Room{}, model.Room{}, err
	}
	return roomFromDoc(before), roomFromDoc(after), nil
}

func (d *DB) DeleteRoom(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.findOne(collRooms, "id", id); err != nil {
		return err
	}
	if err := d.db.Query(collRooms).Where(clover.Field("id").Eq(id)).Delete(); err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return nil
}

func roomFromDoc(doc *clover.Document) model.Room {
	return model.Room{
		ID:            getString(doc, "id"),
		Title:         getString(doc, "title"),
		Description:   getStringPtr(doc, "description"),
		Address:       getString(doc, "address"),
		PricePerMonth: getFloat(doc, "price_per_month"),
		Postcode:      getString(doc, "postcode"),
		OwnerEmail:    getString(doc, "owner_email"),
	}
}

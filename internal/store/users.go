package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ostafen/clover"

	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
)

// CreateUser inserts u; ErrDuplicate if the email is taken.
func (d *DB) CreateUser(ctx context.Context, u model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.findOne(collUsers, "email", u.Email); err == nil {
		return ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	doc := clover.NewDocument()
	doc.Set("email", u.Email)
	doc.Set("hashed_password", u.HashedPassword)
	if _, err := d.db.InsertOne(collUsers, doc); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (d *DB) UserByEmail(ctx context.Context, email string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	doc, err := d.findOne(collUsers, "email", email)
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		Email:          getString(doc, "email"),
		HashedPassword: getString(doc, "hashed_password"),
	}, nil
}

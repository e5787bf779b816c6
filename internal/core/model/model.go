// Package model defines core domain types shared across the service.
package model

import "time"

type Coordinates struct {
	Latitude  float64 `json:"latitude" msgpack:"latitude"`
	Longitude float64 `json:"longitude" msgpack:"longitude"`
}

type DistanceResult struct {
	DistanceMeters  float64 `json:"distance_meters" msgpack:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds" msgpack:"duration_seconds"`
}

type User struct {
	Email          string
	HashedPassword string
}

type UserPublic struct {
	Email string `json:"email"`
}

type Room struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   *string `json:"description"`
	Address       string  `json:"address"`
	PricePerMonth float64 `json:"price_per_month"`
	Postcode      string  `json:"postcode"`
	OwnerEmail    string  `json:"owner_email,omitempty"`
}

type RoomCreate struct {
	Title         string  `json:"title" validate:"required"`
	Description   *string `json:"description"`
	Address       string  `json:"address" validate:"required"`
	PricePerMonth float64 `json:"price_per_month" validate:"gte=0"`
	Postcode      string  `json:"postcode" validate:"required"`
}

// RoomUpdate holds a partial update; nil fields are left untouched.
type RoomUpdate struct {
	Title         *string  `json:"title" validate:"omitempty,min=1"`
	Description   *string  `json:"description"`
	Address       *string  `json:"address" validate:"omitempty,min=1"`
	PricePerMonth *float64 `json:"price_per_month" validate:"omitempty,gte=0"`
	Postcode      *string  `json:"postcode" validate:"omitempty,min=1"`
}

func (u RoomUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Address == nil &&
		u.PricePerMonth == nil && u.Postcode == nil
}

type ApplicationStatus string

const (
	StatusApplied   ApplicationStatus = "applied"
	StatusCancelled ApplicationStatus = "cancelled"
)

type Application struct {
	ID        string            `json:"id"`
	UserEmail string            `json:"user_email"`
	RoomID    string            `json:"room_id"`
	Status    ApplicationStatus `json:"status"`
	AppliedAt time.Time         `json:"applied_at"`
}

type ApplicationCreate struct {
	RoomID string `json:"room_id" validate:"required"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

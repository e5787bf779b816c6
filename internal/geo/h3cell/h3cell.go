// Package h3cell tags coordinates with their H3 cell index.
package h3cell

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/adnan855570/Global-Dorm-App/internal/core/model"
)

const (
	MinRes = 0
	MaxRes = 15
)

type Indexer struct {
	res int
}

func New(res int) (*Indexer, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Indexer{res: res}, nil
}

func (x *Indexer) Res() int { return x.res }

// Cell returns the H3 cell containing c at the configured resolution.
func (x *Indexer) Cell(c model.Coordinates) (string, error) {
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return "", fmt.Errorf("coordinates out of range: %v,%v", c.Latitude, c.Longitude)
	}
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: c.Latitude, Lng: c.Longitude}, x.res)
	if err != nil {
		return "", fmt.Errorf("h3 latlng to cell: %w", err)
	}
	return cell.String(), nil
}

// Parent returns the ancestor of cell at parentRes.
func Parent(cell string, parentRes int) (string, error) {
	if err := validateRes(parentRes); err != nil {
		return "", err
	}
	var c h3.Cell
	if err := c.UnmarshalText([]byte(cell)); err != nil {
		return "", fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return "", fmt.Errorf("invalid h3 cell %q", cell)
	}
	if parentRes > c.Resolution() {
		return "", fmt.Errorf("parentRes %d must be <= cell resolution %d", parentRes, c.Resolution())
	}
	if parentRes == c.Resolution() {
		return cell, nil
	}
	p, err := c.Parent(parentRes)
	if err != nil {
		return "", fmt.Errorf("h3 parent: %w", err)
	}
	return p.String(), nil
}

func validateRes(res int) error {
	if res < MinRes || res > MaxRes {
		return fmt.Errorf("h3 resolution %d out of range [%d,%d]", res, MinRes, MaxRes)
	}
	return nil
}

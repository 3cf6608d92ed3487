package registry

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/nfcsacco/saccoledger/pkg/models"
	"github.com/nfcsacco/saccoledger/pkg/store"
)

// Stations manages the collection stations register.
type Stations struct {
	storage  store.Storage
	validate *validator.Validate
}

func NewStations(s store.Storage) *Stations {
	return &Stations{
		storage:  s,
		validate: validator.New(),
	}
}

type NewStationInput struct {
	Name        string `json:"name" validate:"required"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (r *Stations) Add(input NewStationInput) (*models.Station, error) {
	if err := r.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid station: %w", err)
	}
	station := &models.Station{
		Name:        input.Name,
		Location:    input.Location,
		Description: input.Description,
	}
	if err := r.storage.CreateStation(station); err != nil {
		return nil, fmt.Errorf("failed to add station: %w", err)
	}
	return station, nil
}

func (r *Stations) Get(id int64) (*models.Station, error) {
	return r.storage.GetStation(id)
}

func (r *Stations) Update(station *models.Station) error {
	if station.Name == "" {
		return fmt.Errorf("invalid station: missing name")
	}
	return r.storage.UpdateStation(station)
}

func (r *Stations) Delete(id int64) error {
	return r.storage.DeleteStation(id)
}

func (r *Stations) List() ([]*models.Station, error) {
	return r.storage.ListStations()
}

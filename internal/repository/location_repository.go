package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/formador-scheduler/internal/models"
)

// LocationRepository reads training venues.
type LocationRepository struct {
	db *sqlx.DB
}

// NewLocationRepository constructs the repository.
func NewLocationRepository(db *sqlx.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// FindByID returns a venue; sql.ErrNoRows is returned unwrapped when it does not exist.
func (r *LocationRepository) FindByID(ctx context.Context, id string) (*models.Location, error) {
	const query = `SELECT id, name, COALESCE(city, '') AS city, created_at FROM locations WHERE id = $1`
	var loc models.Location
	if err := r.db.GetContext(ctx, &loc, query, id); err != nil {
		return nil, err
	}
	return &loc, nil
}

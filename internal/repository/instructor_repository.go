package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/formador-scheduler/internal/models"
)

const instructorColumns = `id, full_name, email, active, created_at, updated_at`

// InstructorRepository reads formadores.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs the repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// ListByIDs returns the instructors among ids, ordered by id. Unknown ids are simply absent.
func (r *InstructorRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Instructor, error) {
	if len(ids) == 0 {
		return []models.Instructor{}, nil
	}
	query := `SELECT ` + instructorColumns + ` FROM instructors WHERE id = ANY($1) ORDER BY id`
	var out []models.Instructor
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list instructors by ids: %w", err)
	}
	if out == nil {
		out = []models.Instructor{}
	}
	return out, nil
}

// ListActive returns every active instructor ordered by name.
func (r *InstructorRepository) ListActive(ctx context.Context) ([]models.Instructor, error) {
	query := `SELECT ` + instructorColumns + ` FROM instructors WHERE active = TRUE ORDER BY full_name, id`
	var out []models.Instructor
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list active instructors: %w", err)
	}
	if out == nil {
		out = []models.Instructor{}
	}
	return out, nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/questforge/dm-companion/models"
)

var ErrSpellNotFound = errors.New("spell not found")

type ListSpellsFilter struct {
	Level  *int
	School string
	Class  string
	Limit  int
	Offset int
}

type SpellRepository interface {
	GetBySlug(ctx context.Context, slug string) (*models.Spell, error)
	List(ctx context.Context, filter ListSpellsFilter) ([]models.Spell, error)
	// InsertIfAbsent создаёт заклинание, если записи с таким именем ещё нет.
	InsertIfAbsent(ctx context.Context, s *models.Spell) (bool, error)
}

type postgresSpellRepository struct {
	db *sql.DB
}

func NewPostgresSpellRepository(db *sql.DB) SpellRepository {
	return &postgresSpellRepository{db: db}
}

const spellColumns = `
	id, name, slug, classes, level, school, cast_time, range, duration,
	verbal, somatic, material, material_cost, description`

func (r *postgresSpellRepository) GetBySlug(ctx context.Context, slug string) (*models.Spell, error) {
	query := `SELECT` + spellColumns + ` FROM spells WHERE slug = $1`

	s := &models.Spell{}
	err := r.db.QueryRowContext(ctx, query, slug).Scan(
		&s.ID, &s.Name, &s.Slug, pq.Array(&s.Classes), &s.Level, &s.School,
		&s.CastTime, &s.Range, &s.Duration,
		&s.Verbal, &s.Somatic, &s.Material, &s.MaterialCost, &s.Description,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSpellNotFound
		}
		return nil, fmt.Errorf("failed to get spell: %w", err)
	}
	return s, nil
}

func (r *postgresSpellRepository) List(ctx context.Context, filter ListSpellsFilter) ([]models.Spell, error) {
	query := `SELECT` + spellColumns + ` FROM spells WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Level != nil {
		query += fmt.Sprintf(" AND level = $%d", argID)
		args = append(args, *filter.Level)
		argID++
	}
	if filter.School != "" {
		query += fmt.Sprintf(" AND school = $%d", argID)
		args = append(args, filter.School)
		argID++
	}
	if filter.Class != "" {
		query += fmt.Sprintf(" AND $%d = ANY(classes)", argID)
		args = append(args, filter.Class)
		argID++
	}

	query += " ORDER BY level ASC, name ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list spells: %w", err)
	}
	defer rows.Close()

	spells := make([]models.Spell, 0)
	for rows.Next() {
		var s models.Spell
		if scanErr := rows.Scan(
			&s.ID, &s.Name, &s.Slug, pq.Array(&s.Classes), &s.Level, &s.School,
			&s.CastTime, &s.Range, &s.Duration,
			&s.Verbal, &s.Somatic, &s.Material, &s.MaterialCost, &s.Description,
		); scanErr != nil {
			return nil, scanErr
		}
		spells = append(spells, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return spells, nil
}

func (r *postgresSpellRepository) InsertIfAbsent(ctx context.Context, s *models.Spell) (bool, error) {
	query := `
		INSERT INTO spells (
			name, slug, classes, level, school, cast_time, range, duration,
			verbal, somatic, material, material_cost, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		s.Name, s.Slug, pq.Array(s.Classes), s.Level, s.School,
		s.CastTime, s.Range, s.Duration,
		s.Verbal, s.Somatic, s.Material, s.MaterialCost, s.Description,
	).Scan(&s.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert spell %q: %w", s.Name, err)
	}
	return true, nil
}

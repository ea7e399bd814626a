package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/questforge/dm-companion/models"
)

var (
	ErrEncounterNotFound    = errors.New("encounter not found")
	ErrEncounterUserInvalid = errors.New("invalid user reference for encounter")
)

type EncounterRepository interface {
	Create(ctx context.Context, exec SQLExecutor, e *models.Encounter) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Encounter, error)
	ListByUser(ctx context.Context, userID int) ([]models.Encounter, error)
	UpdateDetails(ctx context.Context, exec SQLExecutor, e *models.Encounter) error
	Delete(ctx context.Context, id int) error
}

type postgresEncounterRepository struct {
	db *sql.DB
}

func NewPostgresEncounterRepository(db *sql.DB) EncounterRepository {
	return &postgresEncounterRepository{db: db}
}

func (r *postgresEncounterRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresEncounterRepository) Create(ctx context.Context, exec SQLExecutor, e *models.Encounter) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO encounters (user_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		e.UserID, e.Name, e.Description,
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrEncounterUserInvalid
		}
		return fmt.Errorf("failed to create encounter: %w", err)
	}
	return nil
}

func (r *postgresEncounterRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Encounter, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, user_id, name, description, created_at
		FROM encounters
		WHERE id = $1`

	e := &models.Encounter{}
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.UserID, &e.Name, &e.Description, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEncounterNotFound
		}
		return nil, fmt.Errorf("failed to get encounter: %w", err)
	}
	return e, nil
}

func (r *postgresEncounterRepository) ListByUser(ctx context.Context, userID int) ([]models.Encounter, error) {
	query := `
		SELECT id, user_id, name, description, created_at
		FROM encounters
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list encounters: %w", err)
	}
	defer rows.Close()

	encounters := make([]models.Encounter, 0)
	for rows.Next() {
		var e models.Encounter
		if scanErr := rows.Scan(&e.ID, &e.UserID, &e.Name, &e.Description, &e.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		encounters = append(encounters, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return encounters, nil
}

func (r *postgresEncounterRepository) UpdateDetails(ctx context.Context, exec SQLExecutor, e *models.Encounter) error {
	executor := r.getExecutor(exec)
	// user_id не обновляется: владелец энкаунтера неизменен.
	query := `UPDATE encounters SET name = $1, description = $2 WHERE id = $3`

	result, err := executor.ExecContext(ctx, query, e.Name, e.Description, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update encounter: %w", err)
	}
	return checkAffectedRows(result, ErrEncounterNotFound)
}

func (r *postgresEncounterRepository) Delete(ctx context.Context, id int) error {
	// Участники удаляются каскадом (ON DELETE CASCADE).
	query := `DELETE FROM encounters WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete encounter: %w", err)
	}
	return checkAffectedRows(result, ErrEncounterNotFound)
}

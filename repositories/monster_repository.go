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
	ErrMonsterNotFound = errors.New("monster not found")
	ErrMonsterInUse    = errors.New("monster is referenced by an encounter")
)

type ListMonstersFilter struct {
	Name   string
	Type   string
	CR     string
	Limit  int
	Offset int
}

type MonsterRepository interface {
	GetByID(ctx context.Context, id int) (*models.Monster, error)
	List(ctx context.Context, filter ListMonstersFilter) ([]models.Monster, error)
	// InsertIfAbsent создаёт монстра, если записи с таким именем ещё нет.
	// Возвращает true, если строка была вставлена.
	InsertIfAbsent(ctx context.Context, m *models.Monster) (bool, error)
	Delete(ctx context.Context, id int) error
}

type postgresMonsterRepository struct {
	db *sql.DB
}

func NewPostgresMonsterRepository(db *sql.DB) MonsterRepository {
	return &postgresMonsterRepository{db: db}
}

func (r *postgresMonsterRepository) GetByID(ctx context.Context, id int) (*models.Monster, error) {
	query := `SELECT id, name, url, cr, type, ac, hp FROM monsters WHERE id = $1`

	m := &models.Monster{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.URL, &m.CR, &m.Type, &m.AC, &m.HP,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMonsterNotFound
		}
		return nil, fmt.Errorf("failed to get monster: %w", err)
	}
	return m, nil
}

func (r *postgresMonsterRepository) List(ctx context.Context, filter ListMonstersFilter) ([]models.Monster, error) {
	query := `SELECT id, name, url, cr, type, ac, hp FROM monsters WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Name != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", argID)
		args = append(args, "%"+filter.Name+"%")
		argID++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argID)
		args = append(args, filter.Type)
		argID++
	}
	if filter.CR != "" {
		query += fmt.Sprintf(" AND cr = $%d", argID)
		args = append(args, filter.CR)
		argID++
	}

	query += " ORDER BY name ASC"

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
		return nil, fmt.Errorf("failed to list monsters: %w", err)
	}
	defer rows.Close()

	monsters := make([]models.Monster, 0)
	for rows.Next() {
		var m models.Monster
		if scanErr := rows.Scan(&m.ID, &m.Name, &m.URL, &m.CR, &m.Type, &m.AC, &m.HP); scanErr != nil {
			return nil, scanErr
		}
		monsters = append(monsters, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return monsters, nil
}

func (r *postgresMonsterRepository) InsertIfAbsent(ctx context.Context, m *models.Monster) (bool, error) {
	// Импорт сопоставляет по натуральному ключу (имени) и пропускает дубликаты.
	query := `
		INSERT INTO monsters (name, url, cr, type, ac, hp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		m.Name, m.URL, m.CR, m.Type, m.AC, m.HP,
	).Scan(&m.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil // уже существует
		}
		return false, fmt.Errorf("failed to insert monster %q: %w", m.Name, err)
	}
	return true, nil
}

func (r *postgresMonsterRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM monsters WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrMonsterInUse
		}
		return fmt.Errorf("failed to delete monster: %w", err)
	}
	return checkAffectedRows(result, ErrMonsterNotFound)
}

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
	ErrCharacterNotFound    = errors.New("player character not found")
	ErrCharacterInUse       = errors.New("player character is referenced by an encounter")
	ErrCharacterUserInvalid = errors.New("invalid user reference for player character")
)

type CharacterRepository interface {
	Create(ctx context.Context, c *models.PlayerCharacter) error
	GetByID(ctx context.Context, id int) (*models.PlayerCharacter, error)
	ListByUser(ctx context.Context, userID int) ([]models.PlayerCharacter, error)
	Update(ctx context.Context, c *models.PlayerCharacter) error
	UpdatePortraitKey(ctx context.Context, characterID int, portraitKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresCharacterRepository struct {
	db *sql.DB
}

func NewPostgresCharacterRepository(db *sql.DB) CharacterRepository {
	return &postgresCharacterRepository{db: db}
}

const characterColumns = `
	id, user_id, character_name, player_name, character_race, character_subrace,
	character_class, character_subclass, ac, hp, info, portrait_key`

func (r *postgresCharacterRepository) Create(ctx context.Context, c *models.PlayerCharacter) error {
	query := `
		INSERT INTO player_characters (
			user_id, character_name, player_name, character_race, character_subrace,
			character_class, character_subclass, ac, hp, info
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		c.UserID, c.CharacterName, c.PlayerName, c.CharacterRace, c.CharacterSubrace,
		c.CharacterClass, c.CharacterSubclass, c.AC, c.HP, c.Info,
	).Scan(&c.ID)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrCharacterUserInvalid
		}
		return fmt.Errorf("failed to create player character: %w", err)
	}
	return nil
}

func (r *postgresCharacterRepository) GetByID(ctx context.Context, id int) (*models.PlayerCharacter, error) {
	query := `SELECT` + characterColumns + ` FROM player_characters WHERE id = $1`

	c := &models.PlayerCharacter{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.CharacterName, &c.PlayerName, &c.CharacterRace, &c.CharacterSubrace,
		&c.CharacterClass, &c.CharacterSubclass, &c.AC, &c.HP, &c.Info, &c.PortraitKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("failed to get player character: %w", err)
	}
	return c, nil
}

func (r *postgresCharacterRepository) ListByUser(ctx context.Context, userID int) ([]models.PlayerCharacter, error) {
	query := `SELECT` + characterColumns + ` FROM player_characters WHERE user_id = $1 ORDER BY character_name ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list player characters: %w", err)
	}
	defer rows.Close()

	characters := make([]models.PlayerCharacter, 0)
	for rows.Next() {
		var c models.PlayerCharacter
		if scanErr := rows.Scan(
			&c.ID, &c.UserID, &c.CharacterName, &c.PlayerName, &c.CharacterRace, &c.CharacterSubrace,
			&c.CharacterClass, &c.CharacterSubclass, &c.AC, &c.HP, &c.Info, &c.PortraitKey,
		); scanErr != nil {
			return nil, scanErr
		}
		characters = append(characters, c)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return characters, nil
}

func (r *postgresCharacterRepository) Update(ctx context.Context, c *models.PlayerCharacter) error {
	// user_id намеренно не обновляется: персонаж не передаётся между пользователями.
	query := `
		UPDATE player_characters SET
			character_name = $1,
			player_name = $2,
			character_race = $3,
			character_subrace = $4,
			character_class = $5,
			character_subclass = $6,
			ac = $7,
			hp = $8,
			info = $9
		WHERE id = $10`

	result, err := r.db.ExecContext(ctx, query,
		c.CharacterName, c.PlayerName, c.CharacterRace, c.CharacterSubrace,
		c.CharacterClass, c.CharacterSubclass, c.AC, c.HP, c.Info,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update player character: %w", err)
	}
	return checkAffectedRows(result, ErrCharacterNotFound)
}

func (r *postgresCharacterRepository) UpdatePortraitKey(ctx context.Context, characterID int, portraitKey *string) error {
	query := `UPDATE player_characters SET portrait_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, portraitKey, characterID)
	if err != nil {
		return fmt.Errorf("failed to update character portrait key: %w", err)
	}
	return checkAffectedRows(result, ErrCharacterNotFound)
}

func (r *postgresCharacterRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM player_characters WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		// Участники энкаунтеров защищают персонажа от удаления (ON DELETE RESTRICT).
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrCharacterInUse
		}
		return fmt.Errorf("failed to delete player character: %w", err)
	}
	return checkAffectedRows(result, ErrCharacterNotFound)
}

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
	ErrParticipantNotFound         = errors.New("participant not found in this encounter")
	ErrParticipantCharacterInvalid = errors.New("participant references an unknown player character")
	ErrParticipantMonsterInvalid   = errors.New("participant references an unknown monster")
	ErrSerializationFailure        = errors.New("concurrent modification detected")
)

// PlayerParticipantPatch описывает частичное обновление строки участника.
// nil-поле означает "оставить хранимое значение" (COALESCE в SQL).
type PlayerParticipantPatch struct {
	PlayerCharacterID *int
	Name              *string
	Initiative        *int
	CurrentHP         *int
	AC                *int
	Notes             *string
}

type MonsterParticipantPatch struct {
	MonsterID  *int
	Name       *string
	Initiative *int
	CurrentHP  *int
	AC         *int
	Notes      *string
}

// ParticipantRepository управляет обеими таблицами участников. Все запросы
// несут предикат encounter_id: строка под чужим энкаунтером разрешается в
// ErrParticipantNotFound, а не присваивается.
type ParticipantRepository interface {
	ListPlayersByEncounter(ctx context.Context, exec SQLExecutor, encounterID int) ([]models.PlayerParticipant, error)
	InsertPlayer(ctx context.Context, exec SQLExecutor, p *models.PlayerParticipant) error
	UpdatePlayer(ctx context.Context, exec SQLExecutor, encounterID, participantID int, patch PlayerParticipantPatch) error
	DeletePlayersExcept(ctx context.Context, exec SQLExecutor, encounterID int, keepIDs []int) error

	ListMonstersByEncounter(ctx context.Context, exec SQLExecutor, encounterID int) ([]models.MonsterParticipant, error)
	InsertMonster(ctx context.Context, exec SQLExecutor, m *models.MonsterParticipant) error
	UpdateMonster(ctx context.Context, exec SQLExecutor, encounterID, participantID int, patch MonsterParticipantPatch) error
	DeleteMonstersExcept(ctx context.Context, exec SQLExecutor, encounterID int, keepIDs []int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipantRepository) ListPlayersByEncounter(ctx context.Context, exec SQLExecutor, encounterID int) ([]models.PlayerParticipant, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT
			p.id, p.encounter_id, p.player_character_id, p.name, p.initiative, p.current_hp, p.ac, p.notes,
			COALESCE(c.id, 0) as character_db_id, COALESCE(c.character_name, '') as character_name
		FROM player_participants p
		LEFT JOIN player_characters c ON p.player_character_id = c.id
		WHERE p.encounter_id = $1
		ORDER BY p.id ASC`

	rows, err := executor.QueryContext(ctx, query, encounterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list player participants: %w", err)
	}
	defer rows.Close()

	participants := make([]models.PlayerParticipant, 0)
	for rows.Next() {
		var p models.PlayerParticipant
		var ref models.PlayerCharacterRef
		if scanErr := rows.Scan(
			&p.ID, &p.EncounterID, &p.PlayerCharacterID, &p.Name, &p.Initiative, &p.CurrentHP, &p.AC, &p.Notes,
			&ref.ID, &ref.CharacterName,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan player participant row: %w", scanErr)
		}
		if p.PlayerCharacterID != nil && ref.ID > 0 {
			p.PlayerCharacter = &ref
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) InsertPlayer(ctx context.Context, exec SQLExecutor, p *models.PlayerParticipant) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO player_participants (encounter_id, player_character_id, name, initiative, current_hp, ac, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := executor.QueryRowContext(ctx, query,
		p.EncounterID, p.PlayerCharacterID, p.Name, p.Initiative, p.CurrentHP, p.AC, p.Notes,
	).Scan(&p.ID)
	if err != nil {
		return r.handleParticipantError(err, "failed to insert player participant")
	}
	return nil
}

func (r *postgresParticipantRepository) UpdatePlayer(ctx context.Context, exec SQLExecutor, encounterID, participantID int, patch PlayerParticipantPatch) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE player_participants SET
			player_character_id = COALESCE($1, player_character_id),
			name = COALESCE($2, name),
			initiative = COALESCE($3, initiative),
			current_hp = COALESCE($4, current_hp),
			ac = COALESCE($5, ac),
			notes = COALESCE($6, notes)
		WHERE id = $7 AND encounter_id = $8`

	result, err := executor.ExecContext(ctx, query,
		patch.PlayerCharacterID, patch.Name, patch.Initiative, patch.CurrentHP, patch.AC, patch.Notes,
		participantID, encounterID,
	)
	if err != nil {
		return r.handleParticipantError(err, "failed to update player participant")
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) DeletePlayersExcept(ctx context.Context, exec SQLExecutor, encounterID int, keepIDs []int) error {
	executor := r.getExecutor(exec)
	if len(keepIDs) == 0 {
		_, err := executor.ExecContext(ctx, `DELETE FROM player_participants WHERE encounter_id = $1`, encounterID)
		if err != nil {
			return r.handleParticipantError(err, "failed to sweep player participants")
		}
		return nil
	}
	query := `DELETE FROM player_participants WHERE encounter_id = $1 AND NOT (id = ANY($2))`
	_, err := executor.ExecContext(ctx, query, encounterID, pq.Array(keepIDs))
	if err != nil {
		return r.handleParticipantError(err, "failed to sweep player participants")
	}
	return nil
}

func (r *postgresParticipantRepository) ListMonstersByEncounter(ctx context.Context, exec SQLExecutor, encounterID int) ([]models.MonsterParticipant, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT
			p.id, p.encounter_id, p.monster_id, p.name, p.initiative, p.current_hp, p.ac, p.notes,
			COALESCE(m.id, 0) as monster_db_id, COALESCE(m.name, '') as monster_name
		FROM monster_participants p
		LEFT JOIN monsters m ON p.monster_id = m.id
		WHERE p.encounter_id = $1
		ORDER BY p.id ASC`

	rows, err := executor.QueryContext(ctx, query, encounterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list monster participants: %w", err)
	}
	defer rows.Close()

	participants := make([]models.MonsterParticipant, 0)
	for rows.Next() {
		var p models.MonsterParticipant
		var ref models.MonsterRef
		if scanErr := rows.Scan(
			&p.ID, &p.EncounterID, &p.MonsterID, &p.Name, &p.Initiative, &p.CurrentHP, &p.AC, &p.Notes,
			&ref.ID, &ref.Name,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan monster participant row: %w", scanErr)
		}
		if p.MonsterID != nil && ref.ID > 0 {
			p.Monster = &ref
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monster participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) InsertMonster(ctx context.Context, exec SQLExecutor, m *models.MonsterParticipant) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO monster_participants (encounter_id, monster_id, name, initiative, current_hp, ac, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := executor.QueryRowContext(ctx, query,
		m.EncounterID, m.MonsterID, m.Name, m.Initiative, m.CurrentHP, m.AC, m.Notes,
	).Scan(&m.ID)
	if err != nil {
		return r.handleParticipantError(err, "failed to insert monster participant")
	}
	return nil
}

func (r *postgresParticipantRepository) UpdateMonster(ctx context.Context, exec SQLExecutor, encounterID, participantID int, patch MonsterParticipantPatch) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE monster_participants SET
			monster_id = COALESCE($1, monster_id),
			name = COALESCE($2, name),
			initiative = COALESCE($3, initiative),
			current_hp = COALESCE($4, current_hp),
			ac = COALESCE($5, ac),
			notes = COALESCE($6, notes)
		WHERE id = $7 AND encounter_id = $8`

	result, err := executor.ExecContext(ctx, query,
		patch.MonsterID, patch.Name, patch.Initiative, patch.CurrentHP, patch.AC, patch.Notes,
		participantID, encounterID,
	)
	if err != nil {
		return r.handleParticipantError(err, "failed to update monster participant")
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) DeleteMonstersExcept(ctx context.Context, exec SQLExecutor, encounterID int, keepIDs []int) error {
	executor := r.getExecutor(exec)
	if len(keepIDs) == 0 {
		_, err := executor.ExecContext(ctx, `DELETE FROM monster_participants WHERE encounter_id = $1`, encounterID)
		if err != nil {
			return r.handleParticipantError(err, "failed to sweep monster participants")
		}
		return nil
	}
	query := `DELETE FROM monster_participants WHERE encounter_id = $1 AND NOT (id = ANY($2))`
	_, err := executor.ExecContext(ctx, query, encounterID, pq.Array(keepIDs))
	if err != nil {
		return r.handleParticipantError(err, "failed to sweep monster participants")
	}
	return nil
}

func (r *postgresParticipantRepository) handleParticipantError(err error, msg string) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23503": // foreign_key_violation
			switch pqErr.Constraint {
			case "player_participants_player_character_id_fkey":
				return ErrParticipantCharacterInvalid
			case "monster_participants_monster_id_fkey":
				return ErrParticipantMonsterInvalid
			case "player_participants_encounter_id_fkey", "monster_participants_encounter_id_fkey":
				return ErrEncounterNotFound
			}
		case "40001": // serialization_failure
			return ErrSerializationFailure
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

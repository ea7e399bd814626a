package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/questforge/dm-companion/live"
	"github.com/questforge/dm-companion/models"
	"github.com/questforge/dm-companion/repositories"
)

// EncounterNotifier получает уведомления об изменении энкаунтера
// (реализуется websocket-хабом).
type EncounterNotifier interface {
	BroadcastToRoom(roomID string, message interface{})
}

// PlayerParticipantInput — дескриптор участника-игрока в запросе.
// ID решает судьбу строки: с ID — обновление существующей строки этого
// энкаунтера, без ID — вставка новой. nil-поля при обновлении сохраняют
// хранимые значения.
type PlayerParticipantInput struct {
	ID                *int    `json:"id"`
	PlayerCharacterID *int    `json:"player_character_id"`
	Name              *string `json:"name"`
	Initiative        *int    `json:"initiative"`
	CurrentHP         *int    `json:"current_hp"`
	AC                *int    `json:"ac"`
	Notes             *string `json:"notes"`
}

type MonsterParticipantInput struct {
	ID         *int    `json:"id"`
	MonsterID  *int    `json:"monster_id"`
	Name       *string `json:"name"`
	Initiative *int    `json:"initiative"`
	CurrentHP  *int    `json:"current_hp"`
	AC         *int    `json:"ac"`
	Notes      *string `json:"notes"`
}

type CreateEncounterInput struct {
	Name        string                    `json:"name"`
	Description *string                   `json:"description"`
	PlayerData  []PlayerParticipantInput  `json:"player_data"`
	MonsterData []MonsterParticipantInput `json:"monster_data"`
}

type UpdateEncounterInput struct {
	Name        *string                   `json:"name"`
	Description *string                   `json:"description"`
	PlayerData  []PlayerParticipantInput  `json:"player_data"`
	MonsterData []MonsterParticipantInput `json:"monster_data"`
}

// EncounterService управляет агрегатом "энкаунтер + участники".
// Все мутации детей идут только через него, прямых точек входа у участников нет.
type EncounterService struct {
	db              *sql.DB
	encounterRepo   repositories.EncounterRepository
	participantRepo repositories.ParticipantRepository
	hub             EncounterNotifier
	logger          *slog.Logger
}

func NewEncounterService(
	db *sql.DB,
	encounterRepo repositories.EncounterRepository,
	participantRepo repositories.ParticipantRepository,
	hub EncounterNotifier,
	logger *slog.Logger,
) *EncounterService {
	return &EncounterService{
		db:              db,
		encounterRepo:   encounterRepo,
		participantRepo: participantRepo,
		hub:             hub,
		logger:          logger,
	}
}

// CreateEncounter создаёт энкаунтер вместе с обоими списками участников
// в одной транзакции. Развёртки удаления нет: прежнего состояния не существует.
func (s *EncounterService) CreateEncounter(ctx context.Context, currentUserID int, input CreateEncounterInput) (*models.Encounter, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrEncounterNameRequired
	}
	if err := validatePlayerInputs(input.PlayerData); err != nil {
		return nil, err
	}
	if err := validateMonsterInputs(input.MonsterData); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	encounter := &models.Encounter{
		UserID:      currentUserID,
		Name:        name,
		Description: input.Description,
	}

	if txErr := s.createTx(ctx, tx, encounter, input); txErr != nil {
		s.rollback(tx, txErr)
		return nil, txErr
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit encounter creation: %w", err)
	}

	return s.loadEncounter(ctx, encounter.ID)
}

func (s *EncounterService) createTx(ctx context.Context, tx *sql.Tx, encounter *models.Encounter, input CreateEncounterInput) error {
	if err := s.encounterRepo.Create(ctx, tx, encounter); err != nil {
		return err
	}
	for _, in := range input.PlayerData {
		// Присланный клиентом id игнорируется: вставка не принимает чужие ключи.
		p := &models.PlayerParticipant{
			EncounterID:       encounter.ID,
			PlayerCharacterID: in.PlayerCharacterID,
			Name:              in.Name,
			Initiative:        in.Initiative,
			CurrentHP:         in.CurrentHP,
			AC:                in.AC,
			Notes:             in.Notes,
		}
		if err := s.participantRepo.InsertPlayer(ctx, tx, p); err != nil {
			return mapParticipantRepoError(err)
		}
	}
	for _, in := range input.MonsterData {
		m := &models.MonsterParticipant{
			EncounterID: encounter.ID,
			MonsterID:   in.MonsterID,
			Name:        in.Name,
			Initiative:  in.Initiative,
			CurrentHP:   in.CurrentHP,
			AC:          in.AC,
			Notes:       in.Notes,
		}
		if err := s.participantRepo.InsertMonster(ctx, tx, m); err != nil {
			return mapParticipantRepoError(err)
		}
	}
	return nil
}

// UpdateEncounter приводит хранимые строки участников в точное соответствие
// с присланными списками: строки с совпавшим id обновляются, без id —
// вставляются, а строки, чей id отсутствует в списке, удаляются одной
// развёрткой на вид участника. Все шаги — одна транзакция.
//
// Два конкурентных вызова по одному энкаунтеру упорядочиваются только
// блокировками строк Postgres: при READ COMMITTED развёртка удаления может
// работать по снимку без чужих вставок. На уровне SERIALIZABLE такая гонка
// всплывает как ErrConcurrentModification.
func (s *EncounterService) UpdateEncounter(ctx context.Context, encounterID, currentUserID int, input UpdateEncounterInput) (*models.Encounter, error) {
	if err := validatePlayerInputs(input.PlayerData); err != nil {
		return nil, err
	}
	if err := validateMonsterInputs(input.MonsterData); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if txErr := s.reconcileTx(ctx, tx, encounterID, currentUserID, input); txErr != nil {
		s.rollback(tx, txErr)
		return nil, txErr
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit encounter update: %w", err)
	}

	encounter, err := s.loadEncounter(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	s.notifyUpdated(encounter)
	return encounter, nil
}

func (s *EncounterService) reconcileTx(ctx context.Context, tx *sql.Tx, encounterID, currentUserID int, input UpdateEncounterInput) error {
	encounter, err := s.encounterRepo.GetByID(ctx, tx, encounterID)
	if err != nil {
		if errors.Is(err, repositories.ErrEncounterNotFound) {
			return ErrEncounterNotFound
		}
		return err
	}
	if encounter.UserID != currentUserID {
		return ErrForbiddenOperation
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return ErrEncounterNameRequired
		}
		encounter.Name = name
	}
	if input.Description != nil {
		encounter.Description = input.Description
	}
	if input.Name != nil || input.Description != nil {
		if err := s.encounterRepo.UpdateDetails(ctx, tx, encounter); err != nil {
			return err
		}
	}

	// Отсутствующий в запросе список (nil) не трогает участников этого вида.
	// Явный пустой массив — полная зачистка.
	if input.PlayerData != nil {
		if err := s.reconcilePlayers(ctx, tx, encounterID, input.PlayerData); err != nil {
			return err
		}
	}
	if input.MonsterData != nil {
		if err := s.reconcileMonsters(ctx, tx, encounterID, input.MonsterData); err != nil {
			return err
		}
	}
	return nil
}

func (s *EncounterService) reconcilePlayers(ctx context.Context, tx *sql.Tx, encounterID int, inputs []PlayerParticipantInput) error {
	surviving := make([]int, 0, len(inputs))
	for _, in := range inputs {
		if in.ID != nil {
			patch := repositories.PlayerParticipantPatch{
				PlayerCharacterID: in.PlayerCharacterID,
				Name:              in.Name,
				Initiative:        in.Initiative,
				CurrentHP:         in.CurrentHP,
				AC:                in.AC,
				Notes:             in.Notes,
			}
			if err := s.participantRepo.UpdatePlayer(ctx, tx, encounterID, *in.ID, patch); err != nil {
				return mapParticipantRepoError(err)
			}
			surviving = append(surviving, *in.ID)
			continue
		}
		p := &models.PlayerParticipant{
			EncounterID:       encounterID,
			PlayerCharacterID: in.PlayerCharacterID,
			Name:              in.Name,
			Initiative:        in.Initiative,
			CurrentHP:         in.CurrentHP,
			AC:                in.AC,
			Notes:             in.Notes,
		}
		if err := s.participantRepo.InsertPlayer(ctx, tx, p); err != nil {
			return mapParticipantRepoError(err)
		}
		surviving = append(surviving, p.ID)
	}
	if err := s.participantRepo.DeletePlayersExcept(ctx, tx, encounterID, surviving); err != nil {
		return mapParticipantRepoError(err)
	}
	return nil
}

func (s *EncounterService) reconcileMonsters(ctx context.Context, tx *sql.Tx, encounterID int, inputs []MonsterParticipantInput) error {
	surviving := make([]int, 0, len(inputs))
	for _, in := range inputs {
		if in.ID != nil {
			patch := repositories.MonsterParticipantPatch{
				MonsterID:  in.MonsterID,
				Name:       in.Name,
				Initiative: in.Initiative,
				CurrentHP:  in.CurrentHP,
				AC:         in.AC,
				Notes:      in.Notes,
			}
			if err := s.participantRepo.UpdateMonster(ctx, tx, encounterID, *in.ID, patch); err != nil {
				return mapParticipantRepoError(err)
			}
			surviving = append(surviving, *in.ID)
			continue
		}
		m := &models.MonsterParticipant{
			EncounterID: encounterID,
			MonsterID:   in.MonsterID,
			Name:        in.Name,
			Initiative:  in.Initiative,
			CurrentHP:   in.CurrentHP,
			AC:         in.AC,
			Notes:       in.Notes,
		}
		if err := s.participantRepo.InsertMonster(ctx, tx, m); err != nil {
			return mapParticipantRepoError(err)
		}
		surviving = append(surviving, m.ID)
	}
	if err := s.participantRepo.DeleteMonstersExcept(ctx, tx, encounterID, surviving); err != nil {
		return mapParticipantRepoError(err)
	}
	return nil
}

// GetEncounter возвращает энкаунтер с вложенными участниками. Только владельцу.
func (s *EncounterService) GetEncounter(ctx context.Context, encounterID, currentUserID int) (*models.Encounter, error) {
	encounter, err := s.loadEncounter(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	if encounter.UserID != currentUserID {
		return nil, ErrForbiddenOperation
	}
	return encounter, nil
}

// ListEncounters возвращает энкаунтеры текущего пользователя без вложенных участников.
func (s *EncounterService) ListEncounters(ctx context.Context, currentUserID int) ([]models.Encounter, error) {
	encounters, err := s.encounterRepo.ListByUser(ctx, currentUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list encounters: %w", err)
	}
	return encounters, nil
}

func (s *EncounterService) DeleteEncounter(ctx context.Context, encounterID, currentUserID int) error {
	encounter, err := s.encounterRepo.GetByID(ctx, nil, encounterID)
	if err != nil {
		if errors.Is(err, repositories.ErrEncounterNotFound) {
			return ErrEncounterNotFound
		}
		return err
	}
	if encounter.UserID != currentUserID {
		return ErrForbiddenOperation
	}
	if err := s.encounterRepo.Delete(ctx, encounterID); err != nil {
		if errors.Is(err, repositories.ErrEncounterNotFound) {
			return ErrEncounterNotFound
		}
		return err
	}
	return nil
}

// loadEncounter перечитывает агрегат из хранилища, чтобы ответ отражал
// сгенерированные сервером значения, а не эхо запроса.
func (s *EncounterService) loadEncounter(ctx context.Context, encounterID int) (*models.Encounter, error) {
	encounter, err := s.encounterRepo.GetByID(ctx, nil, encounterID)
	if err != nil {
		if errors.Is(err, repositories.ErrEncounterNotFound) {
			return nil, ErrEncounterNotFound
		}
		return nil, err
	}
	players, err := s.participantRepo.ListPlayersByEncounter(ctx, nil, encounterID)
	if err != nil {
		return nil, err
	}
	monsters, err := s.participantRepo.ListMonstersByEncounter(ctx, nil, encounterID)
	if err != nil {
		return nil, err
	}
	encounter.PlayerData = players
	encounter.MonsterData = monsters
	return encounter, nil
}

func (s *EncounterService) notifyUpdated(encounter *models.Encounter) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(live.EncounterRoomID(encounter.ID), map[string]interface{}{
		"type":    "ENCOUNTER_UPDATED",
		"payload": encounter,
	})
}

func (s *EncounterService) rollback(tx *sql.Tx, cause error) {
	if rbErr := tx.Rollback(); rbErr != nil && s.logger != nil {
		s.logger.Error("failed to rollback encounter transaction",
			slog.Any("rollback_error", rbErr), slog.Any("cause", cause))
	}
}

// Дескриптор без id обязан нести хоть какую-то идентичность: ссылку в
// ростер/бестиарий или отображаемое имя.
func validatePlayerInputs(inputs []PlayerParticipantInput) error {
	for _, in := range inputs {
		if in.ID == nil && in.PlayerCharacterID == nil && strings.TrimSpace(derefString(in.Name)) == "" {
			return ErrParticipantIdentityRequired
		}
	}
	return nil
}

func validateMonsterInputs(inputs []MonsterParticipantInput) error {
	for _, in := range inputs {
		if in.ID == nil && in.MonsterID == nil && strings.TrimSpace(derefString(in.Name)) == "" {
			return ErrParticipantIdentityRequired
		}
	}
	return nil
}

func mapParticipantRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return ErrParticipantNotFound
	case errors.Is(err, repositories.ErrParticipantCharacterInvalid):
		return ErrCharacterInvalid
	case errors.Is(err, repositories.ErrParticipantMonsterInvalid):
		return ErrMonsterInvalid
	case errors.Is(err, repositories.ErrSerializationFailure):
		return ErrConcurrentModification
	case errors.Is(err, repositories.ErrEncounterNotFound):
		return ErrEncounterNotFound
	}
	return err
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/questforge/dm-companion/models"
	"github.com/questforge/dm-companion/repositories"
	"github.com/questforge/dm-companion/storage"
)

type CreateCharacterInput struct {
	CharacterName     string  `json:"character_name"`
	PlayerName        *string `json:"player_name"`
	CharacterRace     *string `json:"character_race"`
	CharacterSubrace  *string `json:"character_subrace"`
	CharacterClass    *string `json:"character_class"`
	CharacterSubclass *string `json:"character_subclass"`
	AC                *int    `json:"ac"`
	HP                *int    `json:"hp"`
	Info              *string `json:"info"`
}

// UpdateCharacterInput — частичное обновление: nil-поля не трогают хранимые значения.
type UpdateCharacterInput struct {
	CharacterName     *string `json:"character_name"`
	PlayerName        *string `json:"player_name"`
	CharacterRace     *string `json:"character_race"`
	CharacterSubrace  *string `json:"character_subrace"`
	CharacterClass    *string `json:"character_class"`
	CharacterSubclass *string `json:"character_subclass"`
	AC                *int    `json:"ac"`
	HP                *int    `json:"hp"`
	Info              *string `json:"info"`
}

type CharacterService interface {
	CreateCharacter(ctx context.Context, currentUserID int, input CreateCharacterInput) (*models.PlayerCharacter, error)
	GetCharacter(ctx context.Context, characterID, currentUserID int) (*models.PlayerCharacter, error)
	ListCharacters(ctx context.Context, currentUserID int) ([]models.PlayerCharacter, error)
	UpdateCharacter(ctx context.Context, characterID, currentUserID int, input UpdateCharacterInput) (*models.PlayerCharacter, error)
	UploadPortrait(ctx context.Context, characterID, currentUserID int, file io.Reader, contentType string) (*models.PlayerCharacter, error)
	DeleteCharacter(ctx context.Context, characterID, currentUserID int) error
}

type characterService struct {
	characterRepo repositories.CharacterRepository
	uploader      storage.FileUploader
	logger        *slog.Logger
}

func NewCharacterService(characterRepo repositories.CharacterRepository, uploader storage.FileUploader, logger *slog.Logger) CharacterService {
	return &characterService{
		characterRepo: characterRepo,
		uploader:      uploader,
		logger:        logger,
	}
}

func (s *characterService) CreateCharacter(ctx context.Context, currentUserID int, input CreateCharacterInput) (*models.PlayerCharacter, error) {
	name := strings.TrimSpace(input.CharacterName)
	if name == "" {
		return nil, ErrCharacterNameRequired
	}

	character := &models.PlayerCharacter{
		UserID:            currentUserID,
		CharacterName:     name,
		PlayerName:        derefString(input.PlayerName),
		CharacterRace:     derefString(input.CharacterRace),
		CharacterSubrace:  input.CharacterSubrace,
		CharacterClass:    derefString(input.CharacterClass),
		CharacterSubclass: input.CharacterSubclass,
		AC:                input.AC,
		HP:                input.HP,
		Info:              input.Info,
	}

	if err := s.characterRepo.Create(ctx, character); err != nil {
		return nil, fmt.Errorf("failed to create character: %w", err)
	}
	return character, nil
}

func (s *characterService) GetCharacter(ctx context.Context, characterID, currentUserID int) (*models.PlayerCharacter, error) {
	character, err := s.getOwnedCharacter(ctx, characterID, currentUserID)
	if err != nil {
		return nil, err
	}
	populateCharacterPortraitURLFunc(character, s.uploader)
	return character, nil
}

func (s *characterService) ListCharacters(ctx context.Context, currentUserID int) ([]models.PlayerCharacter, error) {
	characters, err := s.characterRepo.ListByUser(ctx, currentUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	for i := range characters {
		populateCharacterPortraitURLFunc(&characters[i], s.uploader)
	}
	return characters, nil
}

func (s *characterService) UpdateCharacter(ctx context.Context, characterID, currentUserID int, input UpdateCharacterInput) (*models.PlayerCharacter, error) {
	character, err := s.getOwnedCharacter(ctx, characterID, currentUserID)
	if err != nil {
		return nil, err
	}

	if input.CharacterName != nil {
		name := strings.TrimSpace(*input.CharacterName)
		if name == "" {
			return nil, ErrCharacterNameRequired
		}
		character.CharacterName = name
	}
	if input.PlayerName != nil {
		character.PlayerName = *input.PlayerName
	}
	if input.CharacterRace != nil {
		character.CharacterRace = *input.CharacterRace
	}
	if input.CharacterSubrace != nil {
		character.CharacterSubrace = input.CharacterSubrace
	}
	if input.CharacterClass != nil {
		character.CharacterClass = *input.CharacterClass
	}
	if input.CharacterSubclass != nil {
		character.CharacterSubclass = input.CharacterSubclass
	}
	if input.AC != nil {
		character.AC = input.AC
	}
	if input.HP != nil {
		character.HP = input.HP
	}
	if input.Info != nil {
		character.Info = input.Info
	}

	if err := s.characterRepo.Update(ctx, character); err != nil {
		if errors.Is(err, repositories.ErrCharacterNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("failed to update character %d: %w", characterID, err)
	}

	populateCharacterPortraitURLFunc(character, s.uploader)
	return character, nil
}

func (s *characterService) UploadPortrait(ctx context.Context, characterID, currentUserID int, file io.Reader, contentType string) (*models.PlayerCharacter, error) {
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}

	character, err := s.getOwnedCharacter(ctx, characterID, currentUserID)
	if err != nil {
		return nil, err
	}

	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return nil, ErrInvalidFileType
	}

	key := fmt.Sprintf("portraits/characters/%d/%s%s", characterID, uuid.NewString(), ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload portrait for character %d: %w", characterID, err)
	}

	oldKey := character.PortraitKey
	if err := s.characterRepo.UpdatePortraitKey(ctx, characterID, &key); err != nil {
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to delete orphaned portrait object",
				slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, fmt.Errorf("failed to store portrait key for character %d: %w", characterID, err)
	}

	if oldKey != nil && *oldKey != "" && *oldKey != key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.Warn("failed to delete previous portrait object",
				slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	character.PortraitKey = &key
	populateCharacterPortraitURLFunc(character, s.uploader)
	return character, nil
}

func (s *characterService) DeleteCharacter(ctx context.Context, characterID, currentUserID int) error {
	character, err := s.getOwnedCharacter(ctx, characterID, currentUserID)
	if err != nil {
		return err
	}

	if err := s.characterRepo.Delete(ctx, characterID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrCharacterNotFound):
			return ErrCharacterNotFound
		case errors.Is(err, repositories.ErrCharacterInUse):
			// Персонаж занят участником энкаунтера: сначала уберите его оттуда.
			return ErrCharacterInUse
		}
		return fmt.Errorf("failed to delete character %d: %w", characterID, err)
	}

	if s.uploader != nil && character.PortraitKey != nil && *character.PortraitKey != "" {
		if delErr := s.uploader.Delete(ctx, *character.PortraitKey); delErr != nil {
			s.logger.Warn("failed to delete portrait of removed character",
				slog.String("key", *character.PortraitKey), slog.Any("error", delErr))
		}
	}
	return nil
}

func (s *characterService) getOwnedCharacter(ctx context.Context, characterID, currentUserID int) (*models.PlayerCharacter, error) {
	character, err := s.characterRepo.GetByID(ctx, characterID)
	if err != nil {
		if errors.Is(err, repositories.ErrCharacterNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("failed to get character %d: %w", characterID, err)
	}
	if character.UserID != currentUserID {
		return nil, ErrForbiddenOperation
	}
	return character, nil
}

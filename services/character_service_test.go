package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/questforge/dm-companion/models"
	"github.com/questforge/dm-companion/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCharacterRepo struct {
	characters map[int]*models.PlayerCharacter
	deleteErr  error
	updated    *models.PlayerCharacter
}

func (f *fakeCharacterRepo) Create(ctx context.Context, c *models.PlayerCharacter) error {
	c.ID = len(f.characters) + 1
	return nil
}

func (f *fakeCharacterRepo) GetByID(ctx context.Context, id int) (*models.PlayerCharacter, error) {
	if c, ok := f.characters[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, repositories.ErrCharacterNotFound
}

func (f *fakeCharacterRepo) ListByUser(ctx context.Context, userID int) ([]models.PlayerCharacter, error) {
	out := make([]models.PlayerCharacter, 0)
	for _, c := range f.characters {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCharacterRepo) Update(ctx context.Context, c *models.PlayerCharacter) error {
	f.updated = c
	return nil
}

func (f *fakeCharacterRepo) UpdatePortraitKey(ctx context.Context, characterID int, portraitKey *string) error {
	return nil
}

func (f *fakeCharacterRepo) Delete(ctx context.Context, id int) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.characters, id)
	return nil
}

func newCharacterServiceForTest(repo repositories.CharacterRepository) CharacterService {
	return NewCharacterService(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateCharacterRequiresName(t *testing.T) {
	svc := newCharacterServiceForTest(&fakeCharacterRepo{characters: map[int]*models.PlayerCharacter{}})

	_, err := svc.CreateCharacter(context.Background(), 42, CreateCharacterInput{CharacterName: "  "})
	assert.ErrorIs(t, err, ErrCharacterNameRequired)
}

func TestGetCharacterForbiddenForNonOwner(t *testing.T) {
	repo := &fakeCharacterRepo{characters: map[int]*models.PlayerCharacter{
		1: {ID: 1, UserID: 42, CharacterName: "Astarion"},
	}}
	svc := newCharacterServiceForTest(repo)

	_, err := svc.GetCharacter(context.Background(), 1, 99)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	character, err := svc.GetCharacter(context.Background(), 1, 42)
	require.NoError(t, err)
	assert.Equal(t, "Astarion", character.CharacterName)
}

func TestUpdateCharacterPatchesOnlyProvidedFields(t *testing.T) {
	ac := 15
	repo := &fakeCharacterRepo{characters: map[int]*models.PlayerCharacter{
		1: {ID: 1, UserID: 42, CharacterName: "Astarion", AC: &ac},
	}}
	svc := newCharacterServiceForTest(repo)

	newHP := 38
	character, err := svc.UpdateCharacter(context.Background(), 1, 42, UpdateCharacterInput{HP: &newHP})
	require.NoError(t, err)

	assert.Equal(t, "Astarion", character.CharacterName)
	require.NotNil(t, character.AC)
	assert.Equal(t, 15, *character.AC)
	require.NotNil(t, character.HP)
	assert.Equal(t, 38, *character.HP)
}

func TestDeleteCharacterInUse(t *testing.T) {
	repo := &fakeCharacterRepo{
		characters: map[int]*models.PlayerCharacter{
			1: {ID: 1, UserID: 42, CharacterName: "Astarion"},
		},
		deleteErr: repositories.ErrCharacterInUse,
	}
	svc := newCharacterServiceForTest(repo)

	err := svc.DeleteCharacter(context.Background(), 1, 42)
	assert.ErrorIs(t, err, ErrCharacterInUse)
}

func TestDeleteCharacterNotFound(t *testing.T) {
	svc := newCharacterServiceForTest(&fakeCharacterRepo{characters: map[int]*models.PlayerCharacter{}})

	err := svc.DeleteCharacter(context.Background(), 7, 42)
	assert.ErrorIs(t, err, ErrCharacterNotFound)
}

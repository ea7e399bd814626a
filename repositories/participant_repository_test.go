package repositories

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/questforge/dm-companion/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParticipantRepoForTest(t *testing.T) (ParticipantRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresParticipantRepository(db), mock
}

func TestUpdatePlayerScopedToEncounter(t *testing.T) {
	repo, mock := newParticipantRepoForTest(t)

	// Строка существует, но под другим энкаунтером: предикат encounter_id
	// даёт ноль затронутых строк.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE player_participants SET`)).
		WithArgs(nil, nil, nil, nil, nil, nil, 5, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePlayer(context.Background(), nil, 99, 5, PlayerParticipantPatch{})
	assert.ErrorIs(t, err, ErrParticipantNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePlayersExceptEmptyKeepListSweepsAll(t *testing.T) {
	repo, mock := newParticipantRepoForTest(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM player_participants WHERE encounter_id = $1`)).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := repo.DeletePlayersExcept(context.Background(), nil, 7, nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMonstersExceptKeepsSurvivors(t *testing.T) {
	repo, mock := newParticipantRepoForTest(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM monster_participants WHERE encounter_id = $1 AND NOT (id = ANY($2))`)).
		WithArgs(7, pq.Array([]int{2, 4})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteMonstersExcept(context.Background(), nil, 7, []int{2, 4})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPlayerMapsForeignKeyViolation(t *testing.T) {
	repo, mock := newParticipantRepoForTest(t)

	pqErr := &pq.Error{Code: "23503", Constraint: "player_participants_player_character_id_fkey"}
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO player_participants`)).
		WillReturnError(pqErr)

	characterID := 12345
	err := repo.InsertPlayer(context.Background(), nil, &models.PlayerParticipant{
		EncounterID:       7,
		PlayerCharacterID: &characterID,
	})
	assert.ErrorIs(t, err, ErrParticipantCharacterInvalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMonsterMapsForeignKeyViolation(t *testing.T) {
	repo, mock := newParticipantRepoForTest(t)

	pqErr := &pq.Error{Code: "23503", Constraint: "monster_participants_monster_id_fkey"}
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO monster_participants`)).
		WillReturnError(pqErr)

	monsterID := 54321
	err := repo.InsertMonster(context.Background(), nil, &models.MonsterParticipant{
		EncounterID: 7,
		MonsterID:   &monsterID,
	})
	assert.ErrorIs(t, err, ErrParticipantMonsterInvalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMonsterMapsSerializationFailure(t *testing.T) {
	repo, mock := newParticipantRepoForTest(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE monster_participants SET`)).
		WillReturnError(&pq.Error{Code: "40001"})

	err := repo.UpdateMonster(context.Background(), nil, 7, 2, MonsterParticipantPatch{})
	assert.ErrorIs(t, err, ErrSerializationFailure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPlayersPopulatesCharacterRef(t *testing.T) {
	repo, mock := newParticipantRepoForTest(t)

	rows := sqlmock.NewRows([]string{
		"id", "encounter_id", "player_character_id", "name", "initiative", "current_hp", "ac", "notes",
		"character_db_id", "character_name",
	}).
		AddRow(1, 7, 11, nil, 15, 20, 14, nil, 11, "Astarion").
		AddRow(2, 7, nil, "Hired Guard", nil, nil, nil, nil, 0, "")

	mock.ExpectQuery(regexp.QuoteMeta(`FROM player_participants p`)).
		WithArgs(7).
		WillReturnRows(rows)

	players, err := repo.ListPlayersByEncounter(context.Background(), nil, 7)
	require.NoError(t, err)
	require.Len(t, players, 2)

	require.NotNil(t, players[0].PlayerCharacter)
	assert.Equal(t, "Astarion", players[0].PlayerCharacter.CharacterName)
	assert.Nil(t, players[1].PlayerCharacter)
	assert.Equal(t, "Hired Guard", *players[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

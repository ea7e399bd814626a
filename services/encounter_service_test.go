package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/questforge/dm-companion/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	rooms    []string
	payloads []interface{}
}

func (f *fakeNotifier) BroadcastToRoom(roomID string, message interface{}) {
	f.rooms = append(f.rooms, roomID)
	f.payloads = append(f.payloads, message)
}

func newEncounterServiceForTest(t *testing.T) (*EncounterService, sqlmock.Sqlmock, *fakeNotifier) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	notifier := &fakeNotifier{}
	svc := NewEncounterService(
		db,
		repositories.NewPostgresEncounterRepository(db),
		repositories.NewPostgresParticipantRepository(db),
		notifier,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return svc, mock, notifier
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func encounterRow(id, userID int, name string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "name", "description", "created_at"}).
		AddRow(id, userID, name, nil, time.Now())
}

func emptyPlayerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "encounter_id", "player_character_id", "name", "initiative", "current_hp", "ac", "notes",
		"character_db_id", "character_name",
	})
}

func emptyMonsterRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "encounter_id", "monster_id", "name", "initiative", "current_hp", "ac", "notes",
		"monster_db_id", "monster_name",
	})
}

func TestUpdateEncounterReconcilesParticipants(t *testing.T) {
	svc, mock, notifier := newEncounterServiceForTest(t)

	// Хранится три игрока (1, 2, 3). Запрос оставляет 2 с новой инициативой,
	// добавляет одного нового и тем самым обрекает 1 и 3 на удаление.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, name, description, created_at`)).
		WithArgs(7).
		WillReturnRows(encounterRow(7, 42, "Goblin Ambush"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE encounters SET name = $1, description = $2 WHERE id = $3`)).
		WithArgs("Goblin Ambush II", nil, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE player_participants SET`)).
		WithArgs(nil, nil, 15, nil, nil, nil, 2, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO player_participants`)).
		WithArgs(7, nil, "Shadowheart", nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM player_participants WHERE encounter_id = $1 AND NOT (id = ANY($2))`)).
		WithArgs(7, pq.Array([]int{2, 4})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM monster_participants WHERE encounter_id = $1`)).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	// Перечитывание после коммита.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, name, description, created_at`)).
		WithArgs(7).
		WillReturnRows(encounterRow(7, 42, "Goblin Ambush II"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM player_participants p`)).
		WithArgs(7).
		WillReturnRows(emptyPlayerRows().
			AddRow(2, 7, nil, "Astarion", 15, 20, 14, nil, 0, "").
			AddRow(4, 7, nil, "Shadowheart", nil, nil, nil, nil, 0, ""))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM monster_participants p`)).
		WithArgs(7).
		WillReturnRows(emptyMonsterRows())

	input := UpdateEncounterInput{
		Name: strPtr("Goblin Ambush II"),
		PlayerData: []PlayerParticipantInput{
			{ID: intPtr(2), Initiative: intPtr(15)},
			{Name: strPtr("Shadowheart")},
		},
		MonsterData: []MonsterParticipantInput{},
	}

	encounter, err := svc.UpdateEncounter(context.Background(), 7, 42, input)
	require.NoError(t, err)
	require.NotNil(t, encounter)

	assert.Equal(t, "Goblin Ambush II", encounter.Name)
	require.Len(t, encounter.PlayerData, 2)
	assert.Equal(t, 2, encounter.PlayerData[0].ID)
	assert.Equal(t, 4, encounter.PlayerData[1].ID)
	assert.Empty(t, encounter.MonsterData)

	require.Len(t, notifier.rooms, 1)
	assert.Equal(t, "encounter_7", notifier.rooms[0])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEncounterIdempotentResubmission(t *testing.T) {
	svc, mock, _ := newEncounterServiceForTest(t)

	// Повторная отправка того же состояния: только обновления и развёртка,
	// которая ничего не удаляет.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, name, description, created_at`)).
		WithArgs(3).
		WillReturnRows(encounterRow(3, 10, "Dragon Lair"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE player_participants SET`)).
		WithArgs(nil, nil, 12, nil, nil, nil, 5, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM player_participants WHERE encounter_id = $1 AND NOT (id = ANY($2))`)).
		WithArgs(3, pq.Array([]int{5})).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE monster_participants SET`)).
		WithArgs(nil, nil, nil, 30, nil, nil, 9, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM monster_participants WHERE encounter_id = $1 AND NOT (id = ANY($2))`)).
		WithArgs(3, pq.Array([]int{9})).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, name, description, created_at`)).
		WithArgs(3).
		WillReturnRows(encounterRow(3, 10, "Dragon Lair"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM player_participants p`)).
		WithArgs(3).
		WillReturnRows(emptyPlayerRows().AddRow(5, 3, nil, "Gale", 12, 18, 13, nil, 0, ""))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM monster_participants p`)).
		WithArgs(3).
		WillReturnRows(emptyMonsterRows().AddRow(9, 3, nil, "Adult Red Dragon", nil, 30, nil, nil, 0, ""))

	input := UpdateEncounterInput{
		PlayerData:  []PlayerParticipantInput{{ID: intPtr(5), Initiative: intPtr(12)}},
		MonsterData: []MonsterParticipantInput{{ID: intPtr(9), CurrentHP: intPtr(30)}},
	}

	encounter, err := svc.UpdateEncounter(context.Background(), 3, 10, input)
	require.NoError(t, err)
	require.Len(t, encounter.PlayerData, 1)
	require.Len(t, encounter.MonsterData, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEncounterForbiddenForNonOwner(t *testing.T) {
	svc, mock, notifier := newEncounterServiceForTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, name, description, created_at`)).
		WithArgs(7).
		WillReturnRows(encounterRow(7, 42, "Goblin Ambush"))
	mock.ExpectRollback()

	_, err := svc.UpdateEncounter(context.Background(), 7, 99, UpdateEncounterInput{})
	assert.ErrorIs(t, err, ErrForbiddenOperation)
	assert.Empty(t, notifier.rooms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEncounterNotFound(t *testing.T) {
	svc, mock, _ := newEncounterServiceForTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, name, description, created_at`)).
		WithArgs(404).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.UpdateEncounter(context.Background(), 404, 42, UpdateEncounterInput{})
	assert.ErrorIs(t, err, ErrEncounterNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEncounterUnknownParticipantRollsBack(t *testing.T) {
	svc, mock, notifier := newEncounterServiceForTest(t)

	// Участник 999 не принадлежит энкаунтеру 7: ноль затронутых строк,
	// транзакция целиком откатывается, развёртка удаления не выполняется.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, name, description, created_at`)).
		WithArgs(7).
		WillReturnRows(encounterRow(7, 42, "Goblin Ambush"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE player_participants SET`)).
		WithArgs(nil, nil, nil, 1, nil, nil, 999, 7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	input := UpdateEncounterInput{
		PlayerData: []PlayerParticipantInput{{ID: intPtr(999), CurrentHP: intPtr(1)}},
	}

	_, err := svc.UpdateEncounter(context.Background(), 7, 42, input)
	assert.ErrorIs(t, err, ErrParticipantNotFound)
	assert.Empty(t, notifier.rooms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEncounterRequiresParticipantIdentity(t *testing.T) {
	svc, mock, _ := newEncounterServiceForTest(t)

	// Дескриптор без id, без ссылки и без имени отклоняется до обращения к БД.
	input := UpdateEncounterInput{
		PlayerData: []PlayerParticipantInput{{Initiative: intPtr(10)}},
	}

	_, err := svc.UpdateEncounter(context.Background(), 7, 42, input)
	assert.ErrorIs(t, err, ErrParticipantIdentityRequired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEncounterInsertsAggregate(t *testing.T) {
	svc, mock, notifier := newEncounterServiceForTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO encounters (user_id, name, description)`)).
		WithArgs(42, "Goblin Ambush", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO player_participants`)).
		WithArgs(7, 11, nil, nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO monster_participants`)).
		WithArgs(7, 5, nil, 3, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, name, description, created_at`)).
		WithArgs(7).
		WillReturnRows(encounterRow(7, 42, "Goblin Ambush"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM player_participants p`)).
		WithArgs(7).
		WillReturnRows(emptyPlayerRows().AddRow(1, 7, 11, nil, nil, nil, nil, nil, 11, "Astarion"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM monster_participants p`)).
		WithArgs(7).
		WillReturnRows(emptyMonsterRows().AddRow(2, 7, 5, nil, 3, nil, nil, nil, 5, "Goblin"))

	input := CreateEncounterInput{
		Name:        "Goblin Ambush",
		PlayerData:  []PlayerParticipantInput{{PlayerCharacterID: intPtr(11)}},
		MonsterData: []MonsterParticipantInput{{MonsterID: intPtr(5), Initiative: intPtr(3)}},
	}

	encounter, err := svc.CreateEncounter(context.Background(), 42, input)
	require.NoError(t, err)
	require.Len(t, encounter.PlayerData, 1)
	require.NotNil(t, encounter.PlayerData[0].PlayerCharacter)
	assert.Equal(t, "Astarion", encounter.PlayerData[0].PlayerCharacter.CharacterName)
	require.Len(t, encounter.MonsterData, 1)
	require.NotNil(t, encounter.MonsterData[0].Monster)
	assert.Equal(t, "Goblin", encounter.MonsterData[0].Monster.Name)

	// Создание комнату не оповещает: подписчиков ещё нет.
	assert.Empty(t, notifier.rooms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEncounterRequiresName(t *testing.T) {
	svc, mock, _ := newEncounterServiceForTest(t)

	_, err := svc.CreateEncounter(context.Background(), 42, CreateEncounterInput{Name: "   "})
	assert.ErrorIs(t, err, ErrEncounterNameRequired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEncounterChecksOwnership(t *testing.T) {
	svc, mock, _ := newEncounterServiceForTest(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, name, description, created_at`)).
		WithArgs(7).
		WillReturnRows(encounterRow(7, 42, "Goblin Ambush"))

	err := svc.DeleteEncounter(context.Background(), 7, 99)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEncounterLoadsNestedParticipants(t *testing.T) {
	svc, mock, _ := newEncounterServiceForTest(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, name, description, created_at`)).
		WithArgs(7).
		WillReturnRows(encounterRow(7, 42, "Goblin Ambush"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM player_participants p`)).
		WithArgs(7).
		WillReturnRows(emptyPlayerRows().AddRow(1, 7, nil, "Astarion", 15, 20, 14, "poisoned", 0, ""))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM monster_participants p`)).
		WithArgs(7).
		WillReturnRows(emptyMonsterRows())

	encounter, err := svc.GetEncounter(context.Background(), 7, 42)
	require.NoError(t, err)
	require.Len(t, encounter.PlayerData, 1)
	assert.Nil(t, encounter.PlayerData[0].PlayerCharacter)
	assert.Equal(t, "poisoned", *encounter.PlayerData[0].Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

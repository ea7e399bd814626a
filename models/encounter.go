package models

import "time"

// Encounter — боевая сцена, принадлежащая одному пользователю.
// Участники (player_data/monster_data) живут и умирают вместе с ней.
type Encounter struct {
	ID          int       `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	PlayerData  []PlayerParticipant  `json:"player_data" db:"-"`
	MonsterData []MonsterParticipant `json:"monster_data" db:"-"`
}

// PlayerParticipant — строка состояния одного бойца-игрока внутри энкаунтера.
// Ссылка на персонажа опциональна: безымянный NPC идентифицируется полем Name.
type PlayerParticipant struct {
	ID                int     `json:"id" db:"id"`
	EncounterID       int     `json:"-" db:"encounter_id"`
	PlayerCharacterID *int    `json:"player_character_id,omitempty" db:"player_character_id"`
	Name              *string `json:"name,omitempty" db:"name"`
	Initiative        *int    `json:"initiative,omitempty" db:"initiative"`
	CurrentHP         *int    `json:"current_hp,omitempty" db:"current_hp"`
	AC                *int    `json:"ac,omitempty" db:"ac"`
	Notes             *string `json:"notes,omitempty" db:"notes"`

	// Заполняется при чтении с JOIN, не мапится напрямую.
	PlayerCharacter *PlayerCharacterRef `json:"player_character,omitempty" db:"-"`
}

// MonsterParticipant — то же самое, но со ссылкой в бестиарий.
type MonsterParticipant struct {
	ID          int     `json:"id" db:"id"`
	EncounterID int     `json:"-" db:"encounter_id"`
	MonsterID   *int    `json:"monster_id,omitempty" db:"monster_id"`
	Name        *string `json:"name,omitempty" db:"name"`
	Initiative  *int    `json:"initiative,omitempty" db:"initiative"`
	CurrentHP   *int    `json:"current_hp,omitempty" db:"current_hp"`
	AC          *int    `json:"ac,omitempty" db:"ac"`
	Notes       *string `json:"notes,omitempty" db:"notes"`

	Monster *MonsterRef `json:"monster,omitempty" db:"-"`
}

// PlayerCharacterRef — вложенное представление персонажа для чтения.
type PlayerCharacterRef struct {
	ID            int    `json:"id"`
	CharacterName string `json:"character_name"`
}

// MonsterRef — вложенное представление монстра для чтения.
type MonsterRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

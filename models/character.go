package models

// PlayerCharacter представляет персонажа игрока, принадлежащего пользователю.
type PlayerCharacter struct {
	ID                int     `json:"id" db:"id"`
	UserID            int     `json:"user_id" db:"user_id"`
	CharacterName     string  `json:"character_name" db:"character_name"`
	PlayerName        string  `json:"player_name" db:"player_name"`
	CharacterRace     string  `json:"character_race" db:"character_race"`
	CharacterSubrace  *string `json:"character_subrace,omitempty" db:"character_subrace"`
	CharacterClass    string  `json:"character_class" db:"character_class"`
	CharacterSubclass *string `json:"character_subclass,omitempty" db:"character_subclass"`
	AC                *int    `json:"ac,omitempty" db:"ac"`
	HP                *int    `json:"hp,omitempty" db:"hp"`
	Info              *string `json:"info,omitempty" db:"info"`

	PortraitKey *string `json:"-" db:"portrait_key"`
	PortraitURL *string `json:"portrait_url,omitempty" db:"-"`
}

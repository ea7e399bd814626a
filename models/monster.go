package models

// Monster — запись в бестиарии. Общая для всех пользователей, загружается
// пакетным импортом (cmd/loadcompendium).
type Monster struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	URL  string `json:"url" db:"url"`
	CR   string `json:"cr" db:"cr"`
	Type string `json:"type" db:"type"`
	AC   int    `json:"ac" db:"ac"`
	HP   int    `json:"hp" db:"hp"`
}

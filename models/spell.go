package models

type Spell struct {
	ID           int      `json:"id" db:"id"`
	Name         string   `json:"name" db:"name"`
	Slug         string   `json:"slug" db:"slug"`
	Classes      []string `json:"classes" db:"classes"`
	Level        int      `json:"level" db:"level"`
	School       string   `json:"school" db:"school"`
	CastTime     string   `json:"cast_time" db:"cast_time"`
	Range        string   `json:"range" db:"range"`
	Duration     string   `json:"duration" db:"duration"`
	Verbal       bool     `json:"verbal" db:"verbal"`
	Somatic      bool     `json:"somatic" db:"somatic"`
	Material     bool     `json:"material" db:"material"`
	MaterialCost *string  `json:"material_cost,omitempty" db:"material_cost"`
	Description  string   `json:"description" db:"description"`
}

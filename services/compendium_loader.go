package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/questforge/dm-companion/models"
	"github.com/questforge/dm-companion/repositories"
)

// LoadReport — итог импорта одного CSV-файла.
type LoadReport struct {
	Rows     int
	Inserted int
	Skipped  int
}

// CompendiumLoader наполняет справочник из CSV-датасетов. Импорт идемпотентен:
// строка с уже существующим именем пропускается, ничего не удаляется.
type CompendiumLoader struct {
	monsterRepo repositories.MonsterRepository
	spellRepo   repositories.SpellRepository
	logger      *slog.Logger
}

func NewCompendiumLoader(monsterRepo repositories.MonsterRepository, spellRepo repositories.SpellRepository, logger *slog.Logger) *CompendiumLoader {
	return &CompendiumLoader{
		monsterRepo: monsterRepo,
		spellRepo:   spellRepo,
		logger:      logger,
	}
}

// LoadMonsters читает CSV с заголовком (name,url,cr,type,ac,hp) и вставляет
// отсутствующих монстров. Колонки сопоставляются по имени, лишние игнорируются.
func (l *CompendiumLoader) LoadMonsters(ctx context.Context, r io.Reader) (*LoadReport, error) {
	records, header, err := readCSVWithHeader(r)
	if err != nil {
		return nil, err
	}
	if _, ok := header["name"]; !ok {
		return nil, fmt.Errorf("monster dataset is missing required column %q", "name")
	}

	report := &LoadReport{Rows: len(records)}
	for i, record := range records {
		name := strings.TrimSpace(columnValue(record, header, "name"))
		if name == "" {
			l.logger.Warn("skipping monster row without a name", slog.Int("row", i+2))
			report.Skipped++
			continue
		}

		monster := &models.Monster{
			Name: name,
			URL:  columnValue(record, header, "url"),
			CR:   columnValue(record, header, "cr"),
			Type: columnValue(record, header, "type"),
			AC:   parseIntColumn(record, header, "ac"),
			HP:   parseIntColumn(record, header, "hp"),
		}

		inserted, err := l.monsterRepo.InsertIfAbsent(ctx, monster)
		if err != nil {
			return nil, fmt.Errorf("failed to import monster %q (row %d): %w", name, i+2, err)
		}
		if inserted {
			report.Inserted++
		} else {
			report.Skipped++
		}
	}

	l.logger.Info("monster dataset loaded",
		slog.Int("rows", report.Rows),
		slog.Int("inserted", report.Inserted),
		slog.Int("skipped", report.Skipped))
	return report, nil
}

// LoadSpells читает CSV с заголовком (name,classes,level,school,cast_time,
// range,duration,verbal,somatic,material,material_cost,description). Классы —
// список через запятую внутри ячейки, slug выводится из имени.
func (l *CompendiumLoader) LoadSpells(ctx context.Context, r io.Reader) (*LoadReport, error) {
	records, header, err := readCSVWithHeader(r)
	if err != nil {
		return nil, err
	}
	if _, ok := header["name"]; !ok {
		return nil, fmt.Errorf("spell dataset is missing required column %q", "name")
	}

	report := &LoadReport{Rows: len(records)}
	for i, record := range records {
		name := strings.TrimSpace(columnValue(record, header, "name"))
		if name == "" {
			l.logger.Warn("skipping spell row without a name", slog.Int("row", i+2))
			report.Skipped++
			continue
		}

		spell := &models.Spell{
			Name:        name,
			Slug:        Slugify(name),
			Classes:     splitClasses(columnValue(record, header, "classes")),
			Level:       parseIntColumn(record, header, "level"),
			School:      columnValue(record, header, "school"),
			CastTime:    columnValue(record, header, "cast_time"),
			Range:       columnValue(record, header, "range"),
			Duration:    columnValue(record, header, "duration"),
			Verbal:      parseBoolColumn(record, header, "verbal"),
			Somatic:     parseBoolColumn(record, header, "somatic"),
			Material:    parseBoolColumn(record, header, "material"),
			Description: columnValue(record, header, "description"),
		}
		if cost := strings.TrimSpace(columnValue(record, header, "material_cost")); cost != "" {
			spell.MaterialCost = &cost
		}

		inserted, err := l.spellRepo.InsertIfAbsent(ctx, spell)
		if err != nil {
			return nil, fmt.Errorf("failed to import spell %q (row %d): %w", name, i+2, err)
		}
		if inserted {
			report.Inserted++
		} else {
			report.Skipped++
		}
	}

	l.logger.Info("spell dataset loaded",
		slog.Int("rows", report.Rows),
		slog.Int("inserted", report.Inserted),
		slog.Int("skipped", report.Skipped))
	return report, nil
}

// Slugify приводит имя к URL-идентификатору: "Mage Hand" -> "mage-hand".
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func readCSVWithHeader(r io.Reader) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("CSV file is empty")
	}

	header := make(map[string]int, len(rows[0]))
	for i, col := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return rows[1:], header, nil
}

func columnValue(record []string, header map[string]int, column string) string {
	idx, ok := header[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseIntColumn(record []string, header map[string]int, column string) int {
	raw := columnValue(record, header, column)
	if raw == "" {
		return 0
	}
	// Датасеты хранят числа как float ("12.0").
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseBoolColumn(record []string, header map[string]int, column string) bool {
	switch strings.ToLower(columnValue(record, header, column)) {
	case "true", "t", "1", "yes":
		return true
	}
	return false
}

func splitClasses(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	classes := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := strings.TrimSpace(p); c != "" {
			classes = append(classes, c)
		}
	}
	return classes
}

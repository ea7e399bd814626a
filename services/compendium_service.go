package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/questforge/dm-companion/models"
	"github.com/questforge/dm-companion/repositories"
)

const (
	defaultCompendiumPageSize = 50
	maxCompendiumPageSize     = 200
)

// CompendiumService — читающая сторона справочника монстров и заклинаний.
// Данные попадают в таблицы только через загрузчик CSV.
type CompendiumService interface {
	GetMonster(ctx context.Context, id int) (*models.Monster, error)
	ListMonsters(ctx context.Context, filter repositories.ListMonstersFilter) ([]models.Monster, error)
	GetSpell(ctx context.Context, slug string) (*models.Spell, error)
	ListSpells(ctx context.Context, filter repositories.ListSpellsFilter) ([]models.Spell, error)
}

type compendiumService struct {
	monsterRepo repositories.MonsterRepository
	spellRepo   repositories.SpellRepository
}

func NewCompendiumService(monsterRepo repositories.MonsterRepository, spellRepo repositories.SpellRepository) CompendiumService {
	return &compendiumService{
		monsterRepo: monsterRepo,
		spellRepo:   spellRepo,
	}
}

func (s *compendiumService) GetMonster(ctx context.Context, id int) (*models.Monster, error) {
	monster, err := s.monsterRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMonsterNotFound) {
			return nil, ErrMonsterNotFound
		}
		return nil, fmt.Errorf("failed to get monster %d: %w", id, err)
	}
	return monster, nil
}

func (s *compendiumService) ListMonsters(ctx context.Context, filter repositories.ListMonstersFilter) ([]models.Monster, error) {
	filter.Limit = clampPageSize(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	monsters, err := s.monsterRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list monsters: %w", err)
	}
	return monsters, nil
}

func (s *compendiumService) GetSpell(ctx context.Context, slug string) (*models.Spell, error) {
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" {
		return nil, ErrSpellNotFound
	}
	spell, err := s.spellRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repositories.ErrSpellNotFound) {
			return nil, ErrSpellNotFound
		}
		return nil, fmt.Errorf("failed to get spell %q: %w", slug, err)
	}
	return spell, nil
}

func (s *compendiumService) ListSpells(ctx context.Context, filter repositories.ListSpellsFilter) ([]models.Spell, error) {
	filter.Limit = clampPageSize(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	spells, err := s.spellRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list spells: %w", err)
	}
	return spells, nil
}

func clampPageSize(limit int) int {
	if limit <= 0 {
		return defaultCompendiumPageSize
	}
	if limit > maxCompendiumPageSize {
		return maxCompendiumPageSize
	}
	return limit
}

package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/questforge/dm-companion/models"
	"github.com/questforge/dm-companion/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonsterRepo struct {
	existing map[string]bool
	inserted []models.Monster
}

func (f *fakeMonsterRepo) GetByID(ctx context.Context, id int) (*models.Monster, error) {
	return nil, repositories.ErrMonsterNotFound
}

func (f *fakeMonsterRepo) List(ctx context.Context, filter repositories.ListMonstersFilter) ([]models.Monster, error) {
	return nil, nil
}

func (f *fakeMonsterRepo) InsertIfAbsent(ctx context.Context, m *models.Monster) (bool, error) {
	if f.existing[m.Name] {
		return false, nil
	}
	m.ID = len(f.inserted) + 1
	f.inserted = append(f.inserted, *m)
	return true, nil
}

func (f *fakeMonsterRepo) Delete(ctx context.Context, id int) error { return nil }

type fakeSpellRepo struct {
	existing map[string]bool
	inserted []models.Spell
}

func (f *fakeSpellRepo) GetBySlug(ctx context.Context, slug string) (*models.Spell, error) {
	return nil, repositories.ErrSpellNotFound
}

func (f *fakeSpellRepo) List(ctx context.Context, filter repositories.ListSpellsFilter) ([]models.Spell, error) {
	return nil, nil
}

func (f *fakeSpellRepo) InsertIfAbsent(ctx context.Context, s *models.Spell) (bool, error) {
	if f.existing[s.Name] {
		return false, nil
	}
	s.ID = len(f.inserted) + 1
	f.inserted = append(f.inserted, *s)
	return true, nil
}

func testLoader(monsterRepo repositories.MonsterRepository, spellRepo repositories.SpellRepository) *CompendiumLoader {
	return NewCompendiumLoader(monsterRepo, spellRepo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLoadMonstersSkipsExistingNames(t *testing.T) {
	monsterRepo := &fakeMonsterRepo{existing: map[string]bool{"Goblin": true}}
	loader := testLoader(monsterRepo, &fakeSpellRepo{})

	csvData := strings.Join([]string{
		"name,url,cr,type,ac,hp",
		"Goblin,https://example.com/goblin,1/4,humanoid,15,7",
		"Adult Red Dragon,https://example.com/dragon,17,dragon,19,256",
	}, "\n")

	report, err := loader.LoadMonsters(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, monsterRepo.inserted, 1)
	assert.Equal(t, "Adult Red Dragon", monsterRepo.inserted[0].Name)
	assert.Equal(t, 19, monsterRepo.inserted[0].AC)
}

func TestLoadMonstersToleratesFloatNumbers(t *testing.T) {
	monsterRepo := &fakeMonsterRepo{}
	loader := testLoader(monsterRepo, &fakeSpellRepo{})

	csvData := "name,ac,hp\nOwlbear,13.0,59.0\n"

	_, err := loader.LoadMonsters(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, monsterRepo.inserted, 1)
	assert.Equal(t, 13, monsterRepo.inserted[0].AC)
	assert.Equal(t, 59, monsterRepo.inserted[0].HP)
}

func TestLoadSpellsParsesClassesAndSlug(t *testing.T) {
	spellRepo := &fakeSpellRepo{}
	loader := testLoader(&fakeMonsterRepo{}, spellRepo)

	csvData := strings.Join([]string{
		"name,classes,level,school,cast_time,range,duration,verbal,somatic,material,material_cost,description",
		`Mage Hand,"Wizard, Sorcerer, Bard",0,Conjuration,1 action,30 feet,1 minute,true,true,false,,A spectral hand appears.`,
	}, "\n")

	report, err := loader.LoadSpells(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)

	require.Len(t, spellRepo.inserted, 1)
	spell := spellRepo.inserted[0]
	assert.Equal(t, "mage-hand", spell.Slug)
	assert.Equal(t, []string{"Wizard", "Sorcerer", "Bard"}, spell.Classes)
	assert.True(t, spell.Verbal)
	assert.True(t, spell.Somatic)
	assert.False(t, spell.Material)
	assert.Nil(t, spell.MaterialCost)
}

func TestLoadSpellsRequiresNameColumn(t *testing.T) {
	loader := testLoader(&fakeMonsterRepo{}, &fakeSpellRepo{})

	_, err := loader.LoadSpells(context.Background(), strings.NewReader("level,school\n1,Evocation\n"))
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "mage-hand", Slugify("Mage Hand"))
	assert.Equal(t, "melfs-acid-arrow", Slugify("Melf's Acid Arrow"))
	assert.Equal(t, "blade-ward", Slugify("  Blade Ward  "))
	assert.Equal(t, "9th-level-spell", Slugify("9th Level Spell!"))
}

package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/codeburst/internal/domain"
	"gopkg.in/yaml.v3"
)

// PackFile represents the YAML structure for a step pack
type PackFile struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Steps       []string `yaml:"steps"`
}

// StepFile represents the YAML structure for a single tutorial step
type StepFile struct {
	ID             string  `yaml:"id"`
	Title          string  `yaml:"title"`
	Description    string  `yaml:"description"`
	Content        string  `yaml:"content"`
	CodeExample    string  `yaml:"code_example"`
	ExpectedOutput *string `yaml:"expected_output"`
	Order          int     `yaml:"order"`
	Active         *bool   `yaml:"active"`
}

// Pack is a loaded step pack
type Pack struct {
	ID          string
	Name        string
	Version     string
	Description string
	Steps       []domain.TutorialStep
}

// PackLoader loads step packs from a directory tree of the form
// <base>/<pack>/pack.yaml + <base>/<pack>/<step>.yaml.
type PackLoader struct {
	basePath string
}

// NewPackLoader creates a new pack loader
func NewPackLoader(basePath string) *PackLoader {
	return &PackLoader{basePath: basePath}
}

// LoadPack loads a pack and all of its steps
func (l *PackLoader) LoadPack(packID string) (*Pack, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, packID, "pack.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read pack file: %w", err)
	}

	var packFile PackFile
	if err := yaml.Unmarshal(data, &packFile); err != nil {
		return nil, fmt.Errorf("parse pack file: %w", err)
	}
	if packFile.ID == "" {
		packFile.ID = packID
	}

	pack := &Pack{
		ID:          packFile.ID,
		Name:        packFile.Name,
		Version:     packFile.Version,
		Description: packFile.Description,
		Steps:       make([]domain.TutorialStep, 0, len(packFile.Steps)),
	}

	for i, slug := range packFile.Steps {
		step, err := l.LoadStep(packID, slug)
		if err != nil {
			return nil, fmt.Errorf("load step %s: %w", slug, err)
		}
		// Steps without an explicit order follow their position in the pack.
		if step.Order == 0 {
			step.Order = i + 1
		}
		pack.Steps = append(pack.Steps, *step)
	}

	return pack, nil
}

// LoadStep loads a single step file from a pack
func (l *PackLoader) LoadStep(packID, slug string) (*domain.TutorialStep, error) {
	if slug == "" || strings.Contains(slug, "..") {
		return nil, fmt.Errorf("invalid step slug: %q", slug)
	}

	data, err := os.ReadFile(filepath.Join(l.basePath, packID, slug+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("read step file: %w", err)
	}

	var stepFile StepFile
	if err := yaml.Unmarshal(data, &stepFile); err != nil {
		return nil, fmt.Errorf("parse step file: %w", err)
	}

	id := stepFile.ID
	if id == "" {
		id = filepath.Base(slug)
	}
	active := true
	if stepFile.Active != nil {
		active = *stepFile.Active
	}

	return &domain.TutorialStep{
		ID:             id,
		Title:          stepFile.Title,
		Description:    stepFile.Description,
		Content:        stepFile.Content,
		CodeExample:    stepFile.CodeExample,
		ExpectedOutput: stepFile.ExpectedOutput,
		Order:          stepFile.Order,
		Active:         active,
	}, nil
}

// LoadAllPacks loads every pack under the base directory. A missing base
// directory yields no packs.
func (l *PackLoader) LoadAllPacks() ([]*Pack, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read packs directory: %w", err)
	}

	var packs []*Pack
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(l.basePath, entry.Name(), "pack.yaml")); os.IsNotExist(err) {
			continue
		}

		pack, err := l.LoadPack(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("load pack %s: %w", entry.Name(), err)
		}
		packs = append(packs, pack)
	}

	return packs, nil
}

// ListSteps returns the steps of every pack ordered by Order. It lets a pack
// directory act as a StepSource.
func (l *PackLoader) ListSteps(_ context.Context) ([]domain.TutorialStep, error) {
	packs, err := l.LoadAllPacks()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var steps []domain.TutorialStep
	for _, pack := range packs {
		for _, step := range pack.Steps {
			if seen[step.ID] {
				return nil, fmt.Errorf("duplicate step id %q in pack %s", step.ID, pack.ID)
			}
			seen[step.ID] = true
			steps = append(steps, step)
		}
	}
	domain.SortSteps(steps)
	return steps, nil
}

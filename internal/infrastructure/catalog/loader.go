// Package catalog loads simulation definitions from JSON files and the
// built-in set, and builds the validated in-memory catalog.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
)

type choiceDoc struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	PointsDelta int    `json:"points_delta"`
	Feedback    string `json:"feedback"`
	NextStep    int    `json:"next_step,omitempty"`
	IsComplete  bool   `json:"is_complete,omitempty"`
}

type stepDoc struct {
	Number      int         `json:"number"`
	Description string      `json:"description"`
	Choices     []choiceDoc `json:"choices"`
}

type definitionDoc struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Steps       []stepDoc `json:"steps"`
}

// Load builds the catalog from the built-in definitions plus every *.json
// file under dir (empty dir means built-ins only). Any integrity violation
// is fatal: the catalog either loads whole or not at all.
func Load(dir string) (*simulation.Catalog, error) {
	defs := BuiltinDefinitions()

	if dir != "" {
		loaded, err := loadDir(dir)
		if err != nil {
			return nil, err
		}
		defs = append(defs, loaded...)
	}

	return simulation.NewCatalog(defs)
}

func loadDir(dir string) ([]*simulation.SimulationDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, shared.WrapError("catalog", "Load", shared.ErrMalformedDefinition,
			fmt.Sprintf("cannot read definitions directory %q", dir), err)
	}

	var defs []*simulation.SimulationDefinition
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		def, err := loadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func loadFile(path string) (*simulation.SimulationDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.WrapError("catalog", "Load", shared.ErrMalformedDefinition,
			fmt.Sprintf("cannot read definition file %q", path), err)
	}

	var doc definitionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, shared.WrapError("catalog", "Load", shared.ErrMalformedDefinition,
			fmt.Sprintf("definition file %q is not valid JSON", path), err)
	}

	return docToDefinition(doc), nil
}

// docToDefinition maps the wire document onto the domain type.
// Structural validation happens later in the catalog constructor.
func docToDefinition(doc definitionDoc) *simulation.SimulationDefinition {
	steps := make([]simulation.ScenarioStep, 0, len(doc.Steps))
	for _, s := range doc.Steps {
		choices := make([]simulation.Choice, 0, len(s.Choices))
		for _, c := range s.Choices {
			choices = append(choices, simulation.Choice{
				ID:          c.ID,
				Text:        c.Text,
				PointsDelta: c.PointsDelta,
				Feedback:    c.Feedback,
				NextStep:    simulation.StepNumber(c.NextStep),
				IsComplete:  c.IsComplete,
			})
		}
		steps = append(steps, simulation.ScenarioStep{
			Number:      simulation.StepNumber(s.Number),
			Description: s.Description,
			Choices:     choices,
		})
	}

	return &simulation.SimulationDefinition{
		ID:          simulation.SimulationID(doc.ID),
		Title:       doc.Title,
		Description: doc.Description,
		Steps:       steps,
	}
}

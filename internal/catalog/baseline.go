package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Kerhoff/chorebot/internal/models"
)

//go:embed baseline.yaml
var defaultBaseline []byte

// Item is one standard checklist entry.
type Item struct {
	Key   string           `yaml:"key"`
	Label string           `yaml:"label"`
	Group models.TaskGroup `yaml:"group"`
}

type baselineFile struct {
	Tasks []Item `yaml:"tasks"`
}

// LoadBaseline reads the standard checklist from path, or the built-in one
// when path is empty.
func LoadBaseline(path string) ([]Item, error) {
	data := defaultBaseline
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file: %w", err)
		}
	}
	return parseBaseline(data)
}

func parseBaseline(data []byte) ([]Item, error) {
	var file baselineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("catalog has no tasks")
	}

	seen := make(map[string]bool, len(file.Tasks))
	for i, item := range file.Tasks {
		switch {
		case item.Key == "":
			return nil, fmt.Errorf("catalog task %d has no key", i)
		case item.Label == "":
			return nil, fmt.Errorf("catalog task %q has no label", item.Key)
		case !item.Group.Valid() || item.Group == models.GroupCustom:
			return nil, fmt.Errorf("catalog task %q has invalid group %q", item.Key, item.Group)
		case seen[item.Key]:
			return nil, fmt.Errorf("catalog task %q is listed twice", item.Key)
		}
		seen[item.Key] = true
	}
	return file.Tasks, nil
}

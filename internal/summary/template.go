package summary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aurelmarchand/medidocs/internal/common"
)

// Field is one extractable item of a template category.
type Field struct {
	Field       string `yaml:"field" json:"field"`
	Description string `yaml:"description" json:"description"`
	Example     string `yaml:"example" json:"example"`
}

// Category groups fields under one extraction theme, pinned to a template
// version so prompts stay reproducible across template edits.
type Category struct {
	Category string  `yaml:"category" json:"category"`
	Version  string  `yaml:"version" json:"version"`
	Fields   []Field `yaml:"fields" json:"fields"`
}

// Template is the full versioned field catalogue.
type Template struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

// Load reads a template file, YAML or JSON by extension.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read template %s: %v", common.ErrInvalidInput, path, err)
	}
	t := &Template{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, t)
	default:
		err = json.Unmarshal(data, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse template %s: %v", common.ErrInvalidInput, path, err)
	}
	if len(t.Categories) == 0 {
		return nil, fmt.Errorf("%w: template %s has no categories", common.ErrInvalidInput, path)
	}
	return t, nil
}

// ForVersion returns the categories pinned to the given version.
func (t *Template) ForVersion(version string) []Category {
	var out []Category
	for _, c := range t.Categories {
		if c.Version == version {
			out = append(out, c)
		}
	}
	return out
}

// FieldSet returns the category's allowed field names for validation.
func (c Category) FieldSet() map[string]bool {
	set := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		set[f.Field] = true
	}
	return set
}

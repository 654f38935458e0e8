package perspective

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hatbot/internal/domain"

	"gopkg.in/yaml.v3"
)

// LoadPack overrides built-in templates from YAML files in dir. Files must
// have a .yaml or .yml extension and conform to the Template schema; the
// perspective is taken from the `name` field, falling back to the filename.
// Malformed or unknown files are logged and skipped, never fatal.
func (g *Generator) LoadPack(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		g.logger.Debug("perspective pack directory does not exist, skipping", "dir", dir)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read perspective pack dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			g.logger.Warn("cannot read perspective file", "path", path, "err", err)
			continue
		}

		var tmpl Template
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			g.logger.Warn("cannot parse perspective file", "path", path, "err", err)
			continue
		}

		if tmpl.Name == "" {
			tmpl.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		p := domain.Perspective(strings.ToLower(tmpl.Name))
		if !p.Valid() {
			g.logger.Warn("unknown perspective in pack, skipping", "name", tmpl.Name, "path", path)
			continue
		}

		existing := g.templates[p]
		if tmpl.Prompt == "" {
			tmpl.Prompt = existing.Prompt
		}
		if tmpl.Reply == "" {
			tmpl.Reply = existing.Reply
		}
		g.templates[p] = tmpl

		g.logger.Info("loaded perspective template", "perspective", string(p), "path", path)
	}

	return nil
}

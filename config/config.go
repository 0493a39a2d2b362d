// Package config loads the YAML project description driving a conversion
// run.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Project describes one conversion project: where the intermediate game
// data lives, where the generated scene project goes, and which levels to
// convert.
type Project struct {
	// GameRoot is the directory holding the exported intermediate JSON.
	GameRoot string `yaml:"game_root"`
	// OutRoot is the generated scene project directory.
	OutRoot string `yaml:"out_root"`
	// AssetTypes is the asset-type definition file, relative to GameRoot
	// unless absolute.
	AssetTypes string `yaml:"asset_types"`
	// Levels lists the level names to convert; each maps to
	// GameRoot/levels/<name>.json.
	Levels []string `yaml:"levels"`
	// ResBase prefixes generated resource references. Defaults to "res://".
	ResBase string `yaml:"res_base"`
	// Resources lists extra (source, dest) resource pairs to register
	// beside the ones found under GameRoot.
	Resources []ResourcePair `yaml:"resources"`
}

// ResourcePair is one mirrored resource file.
type ResourcePair struct {
	Source string `yaml:"source"`
	Dest   string `yaml:"dest"`
}

// Load reads and validates a project file.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("project %s: %w", path, err)
	}
	if p.GameRoot == "" {
		return nil, fmt.Errorf("project %s: game_root is required", path)
	}
	if p.OutRoot == "" {
		return nil, fmt.Errorf("project %s: out_root is required", path)
	}
	if p.AssetTypes == "" {
		p.AssetTypes = "asset_types.json"
	}
	if p.ResBase == "" {
		p.ResBase = "res://"
	}
	return &p, nil
}

// AssetTypesPath resolves the asset-type definition file against GameRoot.
func (p *Project) AssetTypesPath() string {
	if filepath.IsAbs(p.AssetTypes) {
		return p.AssetTypes
	}
	return filepath.Join(p.GameRoot, p.AssetTypes)
}

// LevelPath is the intermediate JSON file for a named level.
func (p *Project) LevelPath(name string) string {
	return filepath.Join(p.GameRoot, "levels", name+".json")
}

// ScenePath is the generated scene file for a named level.
func (p *Project) ScenePath(name string) string {
	return filepath.Join(p.OutRoot, "levels", name+".tscn")
}

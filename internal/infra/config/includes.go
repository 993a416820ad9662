package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIncludeDepth = 10

// includeResolver merges files listed under "includes:" into a Config. It is
// typically used to keep provider secrets or per-device settings in separate
// files next to the main config.
type includeResolver struct {
	visited map[string]bool
	depth   int
}

// process merges every include of cfg, resolved relative to baseDir.
func (r *includeResolver) process(cfg *Config, baseDir string) error {
	if r.depth > maxIncludeDepth {
		return fmt.Errorf("config includes: max depth %d exceeded", maxIncludeDepth)
	}

	patterns := cfg.Includes
	cfg.Includes = nil
	for _, pattern := range patterns {
		paths, err := resolveIncludePaths(pattern, baseDir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				return fmt.Errorf("config includes: abs path %q: %w", p, err)
			}
			if r.visited[abs] {
				return fmt.Errorf("config includes: circular include detected for %q", abs)
			}
			r.visited[abs] = true

			if err := r.merge(cfg, abs); err != nil {
				return err
			}
		}
	}
	return nil
}

// merge overlays one YAML file onto cfg and follows its own includes.
func (r *includeResolver) merge(cfg *Config, path string) error {
	if err := validatePermissions(path); err != nil {
		return fmt.Errorf("config includes: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config includes: read %q: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}

	cfg.Includes = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config includes: parse %q: %w", path, err)
	}
	if len(cfg.Includes) == 0 {
		return nil
	}

	r.depth++
	defer func() { r.depth-- }()
	return r.process(cfg, filepath.Dir(path))
}

// resolveIncludePaths expands pattern (which may contain globs) relative to
// baseDir. Relative patterns may not escape baseDir.
func resolveIncludePaths(pattern, baseDir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(baseDir, pattern)
	}
	pattern = filepath.Clean(pattern)

	if rel, err := filepath.Rel(baseDir, pattern); err == nil && strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("config includes: path %q escapes config directory", pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config includes: glob %q: %w", pattern, err)
	}
	if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[") {
		// Literal path: let merge report the missing file.
		return []string{pattern}, nil
	}
	return matches, nil
}

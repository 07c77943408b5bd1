package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileSettings mirrors Settings for the YAML overlay. Absent keys leave the
// environment-derived value untouched.
type fileSettings struct {
	LLM struct {
		Provider          *string  `yaml:"provider"`
		Model             *string  `yaml:"model"`
		BaseURL           *string  `yaml:"base_url"`
		MaxTokens         *uint32  `yaml:"max_tokens"`
		Temperature       *float64 `yaml:"temperature"`
		PromptTokenBudget *int     `yaml:"prompt_token_budget"`
	} `yaml:"llm"`
	Analysis struct {
		PageSize       *int    `yaml:"page_size"`
		MaxRounds      *int    `yaml:"max_rounds"`
		CommandTimeout *string `yaml:"command_timeout"`
	} `yaml:"analysis"`
	Repo struct {
		ChromiumRoot *string `yaml:"chromium_root"`
		OutDir       *string `yaml:"out_dir"`
		PatchesDir   *string `yaml:"patches_dir"`
	} `yaml:"repo"`
	Cache struct {
		DetailBytes   *int `yaml:"detail_bytes"`
		DiffBytes     *int `yaml:"diff_bytes"`
		LogBytes      *int `yaml:"log_bytes"`
		LogMaxEntries *int `yaml:"log_max_entries"`
	} `yaml:"cache"`
	Storage struct {
		Path *string `yaml:"path"`
	} `yaml:"storage"`
}

// Load creates settings from the environment and overlays the YAML file at
// path. A missing file is not an error; an empty path skips the overlay.
// The provider argument wins over the file's llm.provider.
func Load(path, provider string) (Settings, error) {
	var file fileSettings
	if path != "" {
		if err := readFile(path, &file); err != nil {
			return Settings{}, err
		}
	}

	if provider == "" && file.LLM.Provider != nil {
		provider = *file.LLM.Provider
	}
	settings, err := New(provider)
	if err != nil {
		return Settings{}, err
	}
	if err := file.apply(&settings); err != nil {
		return Settings{}, err
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func readFile(path string, file *fileSettings) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Expand environment variables in the config file
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(file); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (f *fileSettings) apply(s *Settings) error {
	setString(&s.LLM.Model, f.LLM.Model)
	setString(&s.LLM.BaseURL, f.LLM.BaseURL)
	if f.LLM.MaxTokens != nil {
		s.LLM.MaxTokens = *f.LLM.MaxTokens
	}
	if f.LLM.Temperature != nil {
		s.LLM.Temperature = *f.LLM.Temperature
	}
	setInt(&s.LLM.PromptTokenBudget, f.LLM.PromptTokenBudget)

	setInt(&s.Analysis.PageSize, f.Analysis.PageSize)
	setInt(&s.Analysis.MaxRounds, f.Analysis.MaxRounds)
	if f.Analysis.CommandTimeout != nil {
		d, err := time.ParseDuration(*f.Analysis.CommandTimeout)
		if err != nil {
			return fmt.Errorf("invalid analysis.command_timeout %q: %w", *f.Analysis.CommandTimeout, err)
		}
		s.Analysis.CommandTimeout = d
	}

	setString(&s.Repo.ChromiumRoot, f.Repo.ChromiumRoot)
	setString(&s.Repo.OutDir, f.Repo.OutDir)
	setString(&s.Repo.PatchesDir, f.Repo.PatchesDir)

	setInt(&s.Cache.DetailBytes, f.Cache.DetailBytes)
	setInt(&s.Cache.DiffBytes, f.Cache.DiffBytes)
	setInt(&s.Cache.LogBytes, f.Cache.LogBytes)
	setInt(&s.Cache.LogMaxEntries, f.Cache.LogMaxEntries)

	setString(&s.Storage.Path, f.Storage.Path)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

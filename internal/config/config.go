package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// DeletePolicy names the default stage-delete behavior.
type DeletePolicy string

const (
	DeletePolicyRequireEmpty DeletePolicy = "require_empty"
	DeletePolicyDropCards    DeletePolicy = "drop_cards"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Board    BoardConfig    `toml:"board"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type BoardConfig struct {
	// PipelineName names a newly seeded board. A stored name wins once the board exists.
	PipelineName  string        `toml:"pipeline_name"`
	Stages        []StageConfig `toml:"stages"`
	SeedDemoCards bool          `toml:"seed_demo_cards"`
	DeletePolicy  DeletePolicy  `toml:"delete_policy"`
}

type StageConfig struct {
	ID    string `toml:"id"`
	Title string `toml:"title"`
	Color string `toml:"color"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

var stageColors = []string{"blue", "indigo", "purple", "green", "gray"}

func defaultStages() []StageConfig {
	return []StageConfig{
		{ID: "lead", Title: "Lead", Color: "blue"},
		{ID: "contacted", Title: "Contacted", Color: "indigo"},
		{ID: "qualified", Title: "Qualified", Color: "purple"},
		{ID: "proposal", Title: "Proposal", Color: "gray"},
		{ID: "won", Title: "Won", Color: "green"},
	}
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Board: BoardConfig{
			PipelineName:  "Sales Pipeline",
			Stages:        defaultStages(),
			SeedDemoCards: true,
			DeletePolicy:  DeletePolicyRequireEmpty,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".dealboard/log",
			},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	// Configured stages replace the defaults rather than extending them.
	var stages struct {
		Board struct {
			Stages []StageConfig `toml:"stages"`
		} `toml:"board"`
	}
	if err := toml.Unmarshal(content, &stages); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	if stages.Board.Stages != nil {
		cfg.Board.Stages = stages.Board.Stages
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	switch c.Board.DeletePolicy {
	case DeletePolicyRequireEmpty, DeletePolicyDropCards:
	default:
		return fmt.Errorf("invalid board.delete_policy: %q", c.Board.DeletePolicy)
	}

	if strings.TrimSpace(c.Board.PipelineName) == "" {
		return errors.New("board.pipeline_name is required")
	}
	if len(c.Board.Stages) == 0 {
		return errors.New("board.stages must include at least one stage")
	}
	seenStageID := map[string]struct{}{}
	for idx, stage := range c.Board.Stages {
		id := strings.TrimSpace(strings.ToLower(stage.ID))
		if strings.TrimSpace(stage.Title) == "" {
			return fmt.Errorf("board.stages[%d].title is required", idx)
		}
		if color := strings.TrimSpace(strings.ToLower(stage.Color)); color != "" && !slices.Contains(stageColors, color) {
			return fmt.Errorf("board.stages[%d].color %q is not one of %s", idx, stage.Color, strings.Join(stageColors, ", "))
		}
		if id == "" {
			continue
		}
		if _, ok := seenStageID[id]; ok {
			return fmt.Errorf("board.stages[%d].id is duplicated: %s", idx, id)
		}
		seenStageID[id] = struct{}{}
	}

	for _, endpoint := range [][2]string{
		{"server.api_endpoint", c.Server.APIEndpoint},
		{"server.mcp_endpoint", c.Server.MCPEndpoint},
	} {
		if path := strings.TrimSpace(endpoint[1]); path != "" && !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with /: %q", endpoint[0], path)
		}
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when logging.dev_file.enabled is true")
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

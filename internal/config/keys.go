package config

import (
	"fmt"
	"log/slog"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "CAREERSCOPE_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "CAREERSCOPE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CAREERSCOPE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "CAREERSCOPE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "api.token", typ: kString, env: "CAREERSCOPE_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "search.keywords_file", typ: kString, env: "CAREERSCOPE_SEARCH_KEYWORDS_FILE",
		apply:   func(cfg *Config, v any) { cfg.Search.KeywordsFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.KeywordsFile },
	},
	{
		key: "transitions.limit", typ: kInt, env: "CAREERSCOPE_TRANSITIONS_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Transitions.Limit = v.(int) },
		extract: func(cfg Config) any { return cfg.Transitions.Limit },
	},
	{
		key: "advanced.page_size", typ: kInt, env: "CAREERSCOPE_ADVANCED_PAGE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Advanced.PageSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Advanced.PageSize },
	},
	{
		key: "import.postings_file", typ: kString, env: "CAREERSCOPE_IMPORT_POSTINGS_FILE",
		apply:   func(cfg *Config, v any) { cfg.Import.PostingsFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Import.PostingsFile },
	},
	{
		key: "import.payroll_file", typ: kString, env: "CAREERSCOPE_IMPORT_PAYROLL_FILE",
		apply:   func(cfg *Config, v any) { cfg.Import.PayrollFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Import.PayrollFile },
	},
	{
		key: "import.users_file", typ: kString, env: "CAREERSCOPE_IMPORT_USERS_FILE",
		apply:   func(cfg *Config, v any) { cfg.Import.UsersFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Import.UsersFile },
	},
	{
		key: "import.schedule", typ: kString, env: "CAREERSCOPE_IMPORT_SCHEDULE",
		apply:   func(cfg *Config, v any) { cfg.Import.Schedule = v.(string) },
		extract: func(cfg Config) any { return cfg.Import.Schedule },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("ignoring non-integer environment value", "var", s.env, "value", raw)
			}
		}
	}
}

package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
	"time"
)

// AppConfig holds all server configuration.
// Priority (lowest → highest): defaults < env vars < JSON config file < CLI flags.
type AppConfig struct {
	// Server
	DB   string `json:"db"`   // database connection string
	Dev  bool   `json:"dev"`  // dev mode: verbose logging, db dumps on errors
	Addr string `json:"addr"` // HTTP listen address

	// Game pacing
	MinPlayers          int `json:"min_players"`
	NightActionSeconds  int `json:"night_action_seconds"` // per night sub-phase, 0 disables timers
	DeliberationSeconds int `json:"deliberation_seconds"` // day discussion before the vote
	VoteSeconds         int `json:"vote_seconds"`         // lynch and captain votes
	HunterSeconds       int `json:"hunter_seconds"`       // window for the hunter's shot

	// Logging (extended diagnostics, off by default)
	LogOutputDir string `json:"log_output_dir"`
	LogDB        bool   `json:"log_db"`
	LogWS        bool   `json:"log_ws"`
	LogDebug     bool   `json:"log_debug"`

	// AI Narrator
	NarratorProvider    string `json:"narrator_provider"`    // ollama | openai | claude | gemini | groq | openai-compatible
	NarratorModel       string `json:"narrator_model"`       // model name
	NarratorOllamaURL   string `json:"narrator_ollama_url"`  // Ollama server URL
	NarratorURL         string `json:"narrator_url"`         // base URL for openai-compatible
	NarratorAPIKey      string `json:"narrator_api_key"`     // API key for openai-compatible
	NarratorTemperature string `json:"narrator_temperature"` // float 0-1 as string
	GroqAPIKey          string `json:"groq_api_key"`         // API key for groq provider
}

// subPhaseDuration maps a sub-phase to its deadline. Zero means no deadline.
func (cfg AppConfig) subPhaseDuration(phase Phase, sp SubPhase) time.Duration {
	seconds := 0
	switch {
	case phase == PhaseDay && sp == SubPhaseWake:
		seconds = cfg.HunterSeconds
	case phase == PhaseDay && sp == SubPhaseDeliberation:
		seconds = cfg.DeliberationSeconds
	case phase == PhaseDay:
		seconds = cfg.VoteSeconds
	case phase == PhaseNight:
		seconds = cfg.NightActionSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (cfg AppConfig) toLogConfig() LogConfig {
	return LogConfig{
		OutputDir: cfg.LogOutputDir,
		LogDB:     cfg.LogDB,
		LogWS:     cfg.LogWS,
		Debug:     cfg.LogDebug,
	}
}

func defaultConfig() AppConfig {
	return AppConfig{
		DB:                  "file::memory:?cache=shared",
		Addr:                ":8080",
		MinPlayers:          5,
		NightActionSeconds:  90,
		DeliberationSeconds: 180,
		VoteSeconds:         120,
		HunterSeconds:       60,
		NarratorOllamaURL:   "http://localhost:11434",
	}
}

// loadConfig builds a config by layering: defaults → env vars → JSON config file.
// CLI flag overrides are applied separately by flagValues.applyTo after flag.Parse.
func loadConfig(configPath string) AppConfig {
	cfg := defaultConfig()

	// Layer 1: env vars
	envStr := os.Getenv
	envBool := func(key string) (val bool, set bool) {
		v := os.Getenv(key)
		if v == "" {
			return false, false
		}
		return v == "1" || v == "true" || v == "yes", true
	}
	envInt := func(key string) (val int, set bool) {
		v := os.Getenv(key)
		if v == "" {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}

	if v := envStr("DB"); v != "" {
		cfg.DB = v
	}
	if v, ok := envBool("DEV"); ok {
		cfg.Dev = v
	}
	if v := envStr("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v, ok := envInt("MIN_PLAYERS"); ok {
		cfg.MinPlayers = v
	}
	if v, ok := envInt("NIGHT_ACTION_SECONDS"); ok {
		cfg.NightActionSeconds = v
	}
	if v, ok := envInt("DELIBERATION_SECONDS"); ok {
		cfg.DeliberationSeconds = v
	}
	if v, ok := envInt("VOTE_SECONDS"); ok {
		cfg.VoteSeconds = v
	}
	if v, ok := envInt("HUNTER_SECONDS"); ok {
		cfg.HunterSeconds = v
	}
	if v := envStr("LOG_OUTPUT_DIR"); v != "" {
		cfg.LogOutputDir = v
	}
	if v, ok := envBool("LOG_DB"); ok {
		cfg.LogDB = v
	}
	if v, ok := envBool("LOG_WS"); ok {
		cfg.LogWS = v
	}
	if v, ok := envBool("LOG_DEBUG"); ok {
		cfg.LogDebug = v
	}
	if v := envStr("NARRATOR_PROVIDER"); v != "" {
		cfg.NarratorProvider = v
	}
	if v := envStr("NARRATOR_MODEL"); v != "" {
		cfg.NarratorModel = v
	}
	if v := envStr("NARRATOR_OLLAMA_URL"); v != "" {
		cfg.NarratorOllamaURL = v
	}
	if v := envStr("NARRATOR_URL"); v != "" {
		cfg.NarratorURL = v
	}
	if v := envStr("NARRATOR_API_KEY"); v != "" {
		cfg.NarratorAPIKey = v
	}
	if v := envStr("NARRATOR_TEMPERATURE"); v != "" {
		cfg.NarratorTemperature = v
	}
	if v := envStr("GROQ_API_KEY"); v != "" {
		cfg.GroqAPIKey = v
	}

	// Layer 2: JSON config file — only fields present in the file override env vars
	if data, err := os.ReadFile(configPath); err == nil {
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(data, &overlay); err != nil {
			log.Printf("Config: failed to parse %s: %v", configPath, err)
		} else {
			applyJSONOverlay(&cfg, overlay)
			log.Printf("Config: loaded from %s", configPath)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Config: failed to read %s: %v", configPath, err)
	}

	return cfg
}

// applyJSONOverlay only sets fields that are explicitly present in the JSON map.
func applyJSONOverlay(cfg *AppConfig, m map[string]json.RawMessage) {
	str := func(key string, dst *string) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	number := func(key string, dst *int) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	str("db", &cfg.DB)
	boolean("dev", &cfg.Dev)
	str("addr", &cfg.Addr)
	number("min_players", &cfg.MinPlayers)
	number("night_action_seconds", &cfg.NightActionSeconds)
	number("deliberation_seconds", &cfg.DeliberationSeconds)
	number("vote_seconds", &cfg.VoteSeconds)
	number("hunter_seconds", &cfg.HunterSeconds)
	str("log_output_dir", &cfg.LogOutputDir)
	boolean("log_db", &cfg.LogDB)
	boolean("log_ws", &cfg.LogWS)
	boolean("log_debug", &cfg.LogDebug)
	str("narrator_provider", &cfg.NarratorProvider)
	str("narrator_model", &cfg.NarratorModel)
	str("narrator_ollama_url", &cfg.NarratorOllamaURL)
	str("narrator_url", &cfg.NarratorURL)
	str("narrator_api_key", &cfg.NarratorAPIKey)
	str("narrator_temperature", &cfg.NarratorTemperature)
	str("groq_api_key", &cfg.GroqAPIKey)
}

// flagValues holds pointers to all registered CLI flags.
type flagValues struct {
	configPath          *string
	db                  *string
	dev                 *bool
	addr                *string
	minPlayers          *int
	nightActionSeconds  *int
	deliberationSeconds *int
	voteSeconds         *int
	hunterSeconds       *int
	logOutputDir        *string
	logDB               *bool
	logWS               *bool
	logDebug            *bool
	narratorProvider    *string
	narratorModel       *string
	narratorOllamaURL   *string
	narratorURL         *string
	narratorAPIKey      *string
	narratorTemperature *string
	groqAPIKey          *string
}

// registerFlags registers all CLI flags and returns pointers to their values.
// Call flag.Parse() after this, then applyTo to layer them over the loaded config.
func registerFlags() flagValues {
	return flagValues{
		configPath:          flag.String("config", "config.json", "path to JSON config file"),
		db:                  flag.String("db", "", "database connection string"),
		dev:                 flag.Bool("dev", false, "enable development mode (verbose logging, db dumps on error)"),
		addr:                flag.String("addr", "", "HTTP listen address (e.g. :8080)"),
		minPlayers:          flag.Int("min-players", 0, "minimum players to start a game"),
		nightActionSeconds:  flag.Int("night-action-seconds", 0, "deadline per night sub-phase, 0 disables"),
		deliberationSeconds: flag.Int("deliberation-seconds", 0, "day discussion time before the vote"),
		voteSeconds:         flag.Int("vote-seconds", 0, "deadline for lynch and captain votes"),
		hunterSeconds:       flag.Int("hunter-seconds", 0, "window for the hunter's shot"),
		logOutputDir:        flag.String("log-output-dir", "", "directory for extended log files"),
		logDB:               flag.Bool("log-db", false, "log database dumps"),
		logWS:               flag.Bool("log-ws", false, "log WebSocket messages"),
		logDebug:            flag.Bool("log-debug", false, "enable debug logging"),
		narratorProvider:    flag.String("narrator-provider", "", "AI narrator provider (ollama|openai|claude|gemini|groq|openai-compatible)"),
		narratorModel:       flag.String("narrator-model", "", "AI narrator model name"),
		narratorOllamaURL:   flag.String("narrator-ollama-url", "", "Ollama server URL"),
		narratorURL:         flag.String("narrator-url", "", "base URL for openai-compatible provider"),
		narratorAPIKey:      flag.String("narrator-api-key", "", "API key for narrator provider"),
		narratorTemperature: flag.String("narrator-temperature", "", "sampling temperature 0-1"),
		groqAPIKey:          flag.String("groq-api-key", "", "Groq API key"),
	}
}

// applyTo overlays any CLI flags that were explicitly set onto cfg.
// Flags that were not passed on the command line are ignored (env/JSON values win).
func (fv flagValues) applyTo(cfg *AppConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.DB = *fv.db
		case "dev":
			cfg.Dev = *fv.dev
		case "addr":
			cfg.Addr = *fv.addr
		case "min-players":
			cfg.MinPlayers = *fv.minPlayers
		case "night-action-seconds":
			cfg.NightActionSeconds = *fv.nightActionSeconds
		case "deliberation-seconds":
			cfg.DeliberationSeconds = *fv.deliberationSeconds
		case "vote-seconds":
			cfg.VoteSeconds = *fv.voteSeconds
		case "hunter-seconds":
			cfg.HunterSeconds = *fv.hunterSeconds
		case "log-output-dir":
			cfg.LogOutputDir = *fv.logOutputDir
		case "log-db":
			cfg.LogDB = *fv.logDB
		case "log-ws":
			cfg.LogWS = *fv.logWS
		case "log-debug":
			cfg.LogDebug = *fv.logDebug
		case "narrator-provider":
			cfg.NarratorProvider = *fv.narratorProvider
		case "narrator-model":
			cfg.NarratorModel = *fv.narratorModel
		case "narrator-ollama-url":
			cfg.NarratorOllamaURL = *fv.narratorOllamaURL
		case "narrator-url":
			cfg.NarratorURL = *fv.narratorURL
		case "narrator-api-key":
			cfg.NarratorAPIKey = *fv.narratorAPIKey
		case "narrator-temperature":
			cfg.NarratorTemperature = *fv.narratorTemperature
		case "groq-api-key":
			cfg.GroqAPIKey = *fv.groqAPIKey
		}
	})
}

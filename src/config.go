package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sosodev/duration"

	"github.com/ryansname/boilersim/src/anomaly"
	"github.com/ryansname/boilersim/src/combustion"
	"github.com/ryansname/boilersim/src/sim"
)

// Config is the process configuration, read from the environment and an optional .env file
type Config struct {
	HTTPAddr string

	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string
	MQTTClientID string

	HistoryFile          string
	HistoryFlushInterval time.Duration
	ConfigFile           string

	FirebaseDBURL              string
	FirebaseServiceAccountJSON string

	TelegramBotToken string
	TelegramChatID   string

	MentorProxyURL string
	MentorTimeout  time.Duration

	ScenarioFile     string
	Seed             uint64
	TimeAcceleration int

	// Thresholds for the explosion-risk detector
	Thresholds anomaly.Thresholds

	ConsoleEnabled bool
	LogLevel       string
}

// LoadConfig reads .env (if present) and the environment
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		MQTTBroker:   getEnv("MQTT_BROKER", ""),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "boilersim"),

		HistoryFile:          getEnv("HISTORY_FILE", "data/history.json"),
		HistoryFlushInterval: getEnvDuration("HISTORY_FLUSH_INTERVAL", 5*time.Second),
		ConfigFile:           getEnv("CONFIG_FILE", "data/configs.json"),

		FirebaseDBURL:              getEnv("FIREBASE_DB_URL", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		MentorProxyURL: getEnv("MENTOR_PROXY_URL", ""),
		MentorTimeout:  getEnvDuration("MENTOR_TIMEOUT", 30*time.Second),

		ScenarioFile:     getEnv("SCENARIO_FILE", ""),
		TimeAcceleration: getEnvInt("TIME_ACCELERATION", 1),

		ConsoleEnabled: getEnvBool("CONSOLE_ENABLED", true),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	th := anomaly.DefaultThresholds()
	th.BarycenterHigh = getEnvFloat("ANOMALY_BARYCENTER_HIGH", th.BarycenterHigh)
	th.BarycenterCritical = getEnvFloat("ANOMALY_BARYCENTER_CRITICAL", th.BarycenterCritical)
	th.O2Low = getEnvFloat("ANOMALY_O2_LOW", th.O2Low)
	th.O2Critical = getEnvFloat("ANOMALY_O2_CRITICAL", th.O2Critical)
	th.TempDeltaHigh = getEnvFloat("ANOMALY_TEMP_DELTA_HIGH", th.TempDeltaHigh)
	th.TempDeltaCritical = getEnvFloat("ANOMALY_TEMP_DELTA_CRITICAL", th.TempDeltaCritical)
	th.TempWindow = getEnvDuration("ANOMALY_TEMP_WINDOW", th.TempWindow)
	cfg.Thresholds = th

	if v := os.Getenv("SIM_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("SIM_SEED: %w", err)
		}
		cfg.Seed = seed
	}

	if !sim.ValidAcceleration(cfg.TimeAcceleration) {
		return cfg, fmt.Errorf("TIME_ACCELERATION: %w: %d (allowed %v)", sim.ErrInvalidAcceleration, cfg.TimeAcceleration, sim.Accelerations)
	}
	if (cfg.TelegramBotToken == "") != (cfg.TelegramChatID == "") {
		return cfg, fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if on, err := sim.ParseSwitch(strings.TrimSpace(value)); err == nil {
			return on
		}
	}
	return defaultValue
}

// getEnvDuration accepts ISO 8601 (PT5S) or Go syntax (5s)
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := parseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func parseDuration(value string) (time.Duration, error) {
	if strings.HasPrefix(strings.ToUpper(value), "P") {
		d, err := duration.Parse(strings.ToUpper(value))
		if err != nil {
			return 0, err
		}
		return d.ToTimeDuration(), nil
	}
	return time.ParseDuration(value)
}

// Scenario seeds the simulation's initial state. Keys left out keep their defaults.
type Scenario struct {
	Name         string               `toml:"name"`
	Acceleration int                  `toml:"acceleration"`
	Controls     sim.Controls         `toml:"controls"`
	Zones        combustion.Zones     `toml:"zones"`
	Locks        combustion.ZoneLocks `toml:"locks"`
	Mix          combustion.WasteMix  `toml:"mix"`
}

// LoadScenario reads a TOML scenario over the default initial state
func LoadScenario(path string) (Scenario, error) {
	initial := sim.DefaultInitial()
	sc := Scenario{
		Controls: initial.Controls,
		Zones:    initial.Zones,
		Locks:    initial.Locks,
		Mix:      initial.Mix,
	}

	md, err := toml.DecodeFile(path, &sc)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Scenario{}, fmt.Errorf("scenario %s: unknown keys %v", path, undecoded)
	}

	category, err := combustion.ParseCategory(string(sc.Mix.Category))
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	sc.Mix.Category = category

	if sc.Acceleration != 0 && !sim.ValidAcceleration(sc.Acceleration) {
		return Scenario{}, fmt.Errorf("scenario %s: %w: %d", path, sim.ErrInvalidAcceleration, sc.Acceleration)
	}
	return sc, nil
}

// Initial is the simulation state the scenario describes
func (s Scenario) Initial() sim.Initial {
	return sim.Initial{Controls: s.Controls, Zones: s.Zones, Locks: s.Locks, Mix: s.Mix}
}

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker            string
	MQTTClientIDCompanion string
	MQTTClientIDWorker    string
	MQTTClientIDConsole   string
	MQTTClientIDWeb       string
	MQTTClientIDDisplay   string

	// Topics
	TopicWatchInbox     string // watch -> phone app messages
	TopicWatchOutbox    string // phone -> watch app messages
	TopicWatchAck       string // delivery acknowledgements from the watch
	TopicHostEvents     string // ready / showConfiguration / webviewclosed
	TopicHostCommands   string // openURL
	TopicWorkerStatus   string
	TopicWorkerControl  string
	TopicDataLog        string
	TopicCompanionState string

	BridgeAckTimeoutMS int

	// Configuration page opened on showConfiguration
	ConfigPageURL string

	// GPS
	GPSSource            string // "nmea" or "replay"
	GPSSerialPort        string
	GPSBaudRate          int
	GPSReplayFile        string
	GeolocationTimeoutMS int
	GeolocationMaxAgeMS  int

	// Accelerometer
	AccelSource         string // "mock" or "mpu9250"
	IMUSPIDevice        string
	IMUCSPin            string
	AccelSampleInterval int // milliseconds

	// Activity worker
	PedometerSensitivity int32 // 0..100
	ResetTime            int32 // minutes since 00:00
	DataLogIntervalS     int

	// Persistence
	Store          string // "memory" or "redis"
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// Web Server
	WebServerPort int
	WebStaticDir  string

	// Display
	DisplayUpdateInterval int // milliseconds

	// Logging
	LogLevel      string
	LogFilePath   string
	LogMaxAgeDays int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through Get().
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a Config populated with the defaults every key falls back to.
func Default() *Config {
	return &Config{
		MQTTClientIDCompanion: "watch-companion",
		MQTTClientIDWorker:    "watch-activity-worker",
		MQTTClientIDConsole:   "watch-console",
		MQTTClientIDWeb:       "watch-web",
		MQTTClientIDDisplay:   "watch-display",

		TopicWatchInbox:     "watch/inbox",
		TopicWatchOutbox:    "watch/outbox",
		TopicWatchAck:       "watch/ack",
		TopicHostEvents:     "watch/host/events",
		TopicHostCommands:   "watch/host/commands",
		TopicWorkerStatus:   "watch/worker/status",
		TopicWorkerControl:  "watch/worker/control",
		TopicDataLog:        "watch/datalog",
		TopicCompanionState: "watch/companion/state",

		BridgeAckTimeoutMS: 5000,

		ConfigPageURL: "http://on11.mobi/configure.html",

		GPSSource:            "nmea",
		GPSBaudRate:          9600,
		GeolocationTimeoutMS: 10000,
		GeolocationMaxAgeMS:  0,

		AccelSource:         "mock",
		AccelSampleInterval: 100,

		PedometerSensitivity: 20,
		ResetTime:            0,
		DataLogIntervalS:     60,

		Store:          "memory",
		RedisKeyPrefix: "watch",

		WebServerPort: 8080,
		WebStaticDir:  "web",

		DisplayUpdateInterval: 1000,

		LogLevel:      "INFO",
		LogMaxAgeDays: 30,
	}
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_COMPANION":
		c.MQTTClientIDCompanion = value
	case "MQTT_CLIENT_ID_WORKER":
		c.MQTTClientIDWorker = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_WATCH_INBOX":
		c.TopicWatchInbox = value
	case "TOPIC_WATCH_OUTBOX":
		c.TopicWatchOutbox = value
	case "TOPIC_WATCH_ACK":
		c.TopicWatchAck = value
	case "TOPIC_HOST_EVENTS":
		c.TopicHostEvents = value
	case "TOPIC_HOST_COMMANDS":
		c.TopicHostCommands = value
	case "TOPIC_WORKER_STATUS":
		c.TopicWorkerStatus = value
	case "TOPIC_WORKER_CONTROL":
		c.TopicWorkerControl = value
	case "TOPIC_DATA_LOG":
		c.TopicDataLog = value
	case "TOPIC_COMPANION_STATE":
		c.TopicCompanionState = value

	case "BRIDGE_ACK_TIMEOUT_MS":
		v, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.BridgeAckTimeoutMS = v

	case "CONFIG_PAGE_URL":
		c.ConfigPageURL = value

	// GPS
	case "GPS_SOURCE":
		if value != "nmea" && value != "replay" {
			return fmt.Errorf("GPS_SOURCE must be nmea or replay, got %q", value)
		}
		c.GPSSource = value
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.GPSBaudRate = rate
	case "GPS_REPLAY_FILE":
		c.GPSReplayFile = value
	case "GEOLOCATION_TIMEOUT_MS":
		v, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.GeolocationTimeoutMS = v
	case "GEOLOCATION_MAX_AGE_MS":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GEOLOCATION_MAX_AGE_MS %q: %w", value, err)
		}
		if v < 0 {
			return fmt.Errorf("GEOLOCATION_MAX_AGE_MS must be >= 0, got %d", v)
		}
		c.GeolocationMaxAgeMS = v

	// Accelerometer
	case "ACCEL_SOURCE":
		if value != "mock" && value != "mpu9250" {
			return fmt.Errorf("ACCEL_SOURCE must be mock or mpu9250, got %q", value)
		}
		c.AccelSource = value
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "ACCEL_SAMPLE_INTERVAL":
		v, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.AccelSampleInterval = v

	// Activity worker
	case "PEDOMETER_SENSITIVITY":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PEDOMETER_SENSITIVITY %q: %w", value, err)
		}
		if v < 0 || v > 100 {
			return fmt.Errorf("PEDOMETER_SENSITIVITY must be 0-100, got %d", v)
		}
		c.PedometerSensitivity = int32(v)
	case "RESET_TIME":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RESET_TIME %q: %w", value, err)
		}
		if v < 0 || v > 1439 {
			return fmt.Errorf("RESET_TIME must be 0-1439 (minutes since 00:00), got %d", v)
		}
		c.ResetTime = int32(v)
	case "DATA_LOG_INTERVAL_S":
		v, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.DataLogIntervalS = v

	// Persistence
	case "STORE":
		if value != "memory" && value != "redis" {
			return fmt.Errorf("STORE must be memory or redis, got %q", value)
		}
		c.Store = value
	case "REDIS_ADDR":
		c.RedisAddr = value
	case "REDIS_PASSWORD":
		c.RedisPassword = value
	case "REDIS_DB":
		db, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", value, err)
		}
		if db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be 0-15, got %d", db)
		}
		c.RedisDB = db
	case "REDIS_KEY_PREFIX":
		c.RedisKeyPrefix = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port <= 0 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", port)
		}
		c.WebServerPort = port
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.DisplayUpdateInterval = interval

	// Logging
	case "LOG_LEVEL":
		switch strings.ToUpper(value) {
		case "DEBUG", "INFO", "WARN", "ERROR":
			c.LogLevel = strings.ToUpper(value)
		default:
			return fmt.Errorf("LOG_LEVEL must be DEBUG, INFO, WARN or ERROR, got %q", value)
		}
	case "LOG_FILE_PATH":
		c.LogFilePath = value
	case "LOG_MAX_AGE_DAYS":
		days, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_MAX_AGE_DAYS %q: %w", value, err)
		}
		c.LogMaxAgeDays = days

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func positiveInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be > 0, got %d", key, v)
	}
	return v, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.GPSSource == "nmea" && c.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is required when GPS_SOURCE=nmea")
	}
	if c.GPSSource == "replay" && c.GPSReplayFile == "" {
		return fmt.Errorf("GPS_REPLAY_FILE is required when GPS_SOURCE=replay")
	}
	if c.AccelSource == "mpu9250" && (c.IMUSPIDevice == "" || c.IMUCSPin == "") {
		return fmt.Errorf("IMU_SPI_DEVICE and IMU_CS_PIN are required when ACCEL_SOURCE=mpu9250")
	}
	if c.Store == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when STORE=redis")
	}
	return nil
}

// BridgeAckTimeout returns BRIDGE_ACK_TIMEOUT_MS as a duration.
func (c *Config) BridgeAckTimeout() time.Duration {
	return time.Duration(c.BridgeAckTimeoutMS) * time.Millisecond
}

// GeolocationTimeout returns GEOLOCATION_TIMEOUT_MS as a duration.
func (c *Config) GeolocationTimeout() time.Duration {
	return time.Duration(c.GeolocationTimeoutMS) * time.Millisecond
}

// GeolocationMaxAge returns GEOLOCATION_MAX_AGE_MS as a duration.
func (c *Config) GeolocationMaxAge() time.Duration {
	return time.Duration(c.GeolocationMaxAgeMS) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

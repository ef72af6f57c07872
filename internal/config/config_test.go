package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watch_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
# minimal config
MQTT_BROKER=tcp://localhost:1883
GPS_SERIAL_PORT=/dev/serial0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "/dev/serial0", cfg.GPSSerialPort)
	assert.Equal(t, 9600, cfg.GPSBaudRate)
	assert.Equal(t, "watch/inbox", cfg.TopicWatchInbox)
	assert.Equal(t, "http://on11.mobi/configure.html", cfg.ConfigPageURL)
	assert.Equal(t, int32(20), cfg.PedometerSensitivity)
	assert.Equal(t, 10*time.Second, cfg.GeolocationTimeout())
	assert.Equal(t, time.Duration(0), cfg.GeolocationMaxAge())
	assert.Equal(t, 5*time.Second, cfg.BridgeAckTimeout())
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER = tcp://broker:1883
MQTT_CLIENT_ID_COMPANION=phone-1
TOPIC_WATCH_OUTBOX=pebble/out
CONFIG_PAGE_URL=http://on11.mobi/configure-time.html
GPS_SOURCE=replay
GPS_REPLAY_FILE=route.nmea
GEOLOCATION_TIMEOUT_MS=2500
GEOLOCATION_MAX_AGE_MS=1000
ACCEL_SOURCE=mpu9250
IMU_SPI_DEVICE=/dev/spidev0.0
IMU_CS_PIN=8
PEDOMETER_SENSITIVITY=35
RESET_TIME=570
STORE=redis
REDIS_ADDR=localhost:6379
REDIS_DB=2
LOG_LEVEL=debug
LOG_FILE_PATH=logs/companion.log
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, "phone-1", cfg.MQTTClientIDCompanion)
	assert.Equal(t, "pebble/out", cfg.TopicWatchOutbox)
	assert.Equal(t, "http://on11.mobi/configure-time.html", cfg.ConfigPageURL)
	assert.Equal(t, "replay", cfg.GPSSource)
	assert.Equal(t, 2500*time.Millisecond, cfg.GeolocationTimeout())
	assert.Equal(t, time.Second, cfg.GeolocationMaxAge())
	assert.Equal(t, "mpu9250", cfg.AccelSource)
	assert.Equal(t, int32(35), cfg.PedometerSensitivity)
	assert.Equal(t, int32(570), cfg.ResetTime)
	assert.Equal(t, "redis", cfg.Store)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "logs/companion.log", cfg.LogFilePath)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]string{
		"missing broker":        "GPS_SERIAL_PORT=/dev/serial0\n",
		"unknown key":           "MQTT_BROKER=tcp://x:1883\nGPS_SERIAL_PORT=/dev/ttyS0\nFOO=bar\n",
		"line without equals":   "MQTT_BROKER tcp://x:1883\n",
		"sensitivity range":     "MQTT_BROKER=tcp://x:1883\nGPS_SERIAL_PORT=/dev/ttyS0\nPEDOMETER_SENSITIVITY=101\n",
		"reset time range":      "MQTT_BROKER=tcp://x:1883\nGPS_SERIAL_PORT=/dev/ttyS0\nRESET_TIME=1440\n",
		"negative timeout":      "MQTT_BROKER=tcp://x:1883\nGPS_SERIAL_PORT=/dev/ttyS0\nGEOLOCATION_TIMEOUT_MS=-1\n",
		"serial port required":  "MQTT_BROKER=tcp://x:1883\n",
		"replay file required":  "MQTT_BROKER=tcp://x:1883\nGPS_SOURCE=replay\n",
		"bad gps source":        "MQTT_BROKER=tcp://x:1883\nGPS_SOURCE=wifi\n",
		"redis addr required":   "MQTT_BROKER=tcp://x:1883\nGPS_SERIAL_PORT=/dev/ttyS0\nSTORE=redis\n",
		"imu pins required":     "MQTT_BROKER=tcp://x:1883\nGPS_SERIAL_PORT=/dev/ttyS0\nACCEL_SOURCE=mpu9250\n",
		"bad log level":         "MQTT_BROKER=tcp://x:1883\nGPS_SERIAL_PORT=/dev/ttyS0\nLOG_LEVEL=LOUD\n",
		"display address fixed": "MQTT_BROKER=tcp://x:1883\nGPS_SERIAL_PORT=/dev/ttyS0\nDISPLAY_I2C_ADDR=0x3D\n",
		"web port out of range": "MQTT_BROKER=tcp://x:1883\nGPS_SERIAL_PORT=/dev/ttyS0\nWEB_SERVER_PORT=70000\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does_not_exist.txt"))
	assert.Error(t, err)
}

func TestDisplayIntervalOnly(t *testing.T) {
	// the panel address is fixed at 0x3C, only the refresh rate is configurable
	cfg, err := Load(writeConfig(t, "MQTT_BROKER=tcp://x:1883\nGPS_SERIAL_PORT=/dev/ttyS0\nDISPLAY_UPDATE_INTERVAL=250\n"))
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.DisplayUpdateInterval)

	_, err = Load(writeConfig(t, "MQTT_BROKER=tcp://x:1883\nGPS_SERIAL_PORT=/dev/ttyS0\nDISPLAY_I2C_ADDR=0x3C\n"))
	assert.Error(t, err)
}

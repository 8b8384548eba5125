package configs

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"
)

// Config drives the hosted board: logging backends and the LED toggle period.
type Config struct {
	LogLevel     string
	LogDeferred  bool
	UARTDevice   string
	UARTBaud     int
	TraceAddr    string
	TogglePeriod time.Duration
}

func Default() Config {
	return Config{
		LogLevel:     "info",
		UARTBaud:     115200,
		TogglePeriod: 500 * time.Millisecond,
	}
}

func ReadConfigFromFile(filePath string) (Config, error) {
	data, err := ioutil.ReadFile(filePath)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

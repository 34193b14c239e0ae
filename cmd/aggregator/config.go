package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/newspulse/aggregator/internal/storage/factory"
)

// AppConfig loads the aggregation settings that live outside the server
// config: storage backends, the downstream processor and the scheduler.
type AppConfig struct {
	StorageConfig    *factory.StorageConfig
	ProcessorURL     string
	ProcessorAPIKey  string
	ScheduleInterval time.Duration
}

type AppSettings struct {
}

func NewAppConfig() *AppSettings {
	return &AppSettings{}
}

func (s *AppSettings) Load() (*AppConfig, error) {
	storageCfg, err := factory.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	var interval time.Duration
	if raw := os.Getenv("SCHEDULE_INTERVAL_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < 1 {
			return nil, fmt.Errorf("invalid SCHEDULE_INTERVAL_MINUTES: %s", raw)
		}
		interval = time.Duration(minutes) * time.Minute
	}

	return &AppConfig{
		StorageConfig:    storageCfg,
		ProcessorURL:     os.Getenv("PROCESSOR_URL"),
		ProcessorAPIKey:  os.Getenv("PROCESSOR_API_KEY"),
		ScheduleInterval: interval,
	}, nil
}

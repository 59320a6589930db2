package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icewatch/ice-monitor/cloud"
	"github.com/icewatch/ice-monitor/config"
	"github.com/icewatch/ice-monitor/logger"
	"github.com/icewatch/ice-monitor/monitor"
	"github.com/icewatch/ice-monitor/mqtt"
	"github.com/icewatch/ice-monitor/notify"
	"github.com/icewatch/ice-monitor/storage"
	"github.com/icewatch/ice-monitor/validator"
)

func main() {
	configPath := "config.yaml"

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.InitFromConfig(cfg.Logger.Level, cfg.Logger.FilePath,
		cfg.Logger.MaxSize, cfg.Logger.MaxBackups, cfg.Logger.Console); err != nil {
		log.Printf("failed to initialize logger: %v, using defaults", err)
	}
	defer logger.Close()

	if err := validator.ValidateMonitorConfig(cfg.Monitor); err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.Cloud.ClientID == "" || cfg.Cloud.ClientSecret == "" {
		log.Fatalf("cloud client credentials are not configured")
	}

	timeout := time.Duration(cfg.Cloud.TimeoutSeconds) * time.Second
	tokens := cloud.NewTokenCache(cfg.Cloud.TokenURL, cfg.Cloud.ClientID, cfg.Cloud.ClientSecret, timeout)
	registry := cloud.NewClient(cfg.Cloud.BaseURL, tokens, timeout)

	mailer, err := notify.NewMailer(cfg.Mail)
	if err != nil {
		log.Fatalf("failed to initialize mail transport: %v", err)
	}

	throttle := notify.NewThrottle(time.Duration(cfg.Monitor.CooldownMinutes) * time.Minute)

	filter, err := notify.NewFilterFromConfig(cfg.Monitor)
	if err != nil {
		log.Fatalf("failed to initialize alert filter: %v", err)
	}

	opts := monitor.Options{
		Interval:    time.Duration(cfg.Monitor.IntervalMinutes) * time.Minute,
		BatchSize:   cfg.Monitor.BatchSize,
		CallTimeout: timeout,
	}
	if filter != nil {
		opts.Filter = filter
	}

	// Optional MQTT alert mirror
	var publisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		publisher, err = mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			log.Fatalf("failed to initialize MQTT publisher: %v", err)
		}
		if err := publisher.Connect(); err != nil {
			logger.Error("failed to connect to MQTT broker: %v", err)
			// Mirror channel is best-effort; auto-reconnect keeps trying
		}
		opts.Sink = publisher
	}

	// Optional status-change audit trail
	backends := make([]storage.Backend, 0, 2)
	if cfg.Storage.File.Enabled {
		fileStorage, err := storage.NewFileStorage(cfg.Storage.File.Path)
		if err != nil {
			log.Fatalf("failed to initialize file storage: %v", err)
		}
		backends = append(backends, fileStorage)
	}
	if cfg.Storage.Database.Enabled {
		dbStorage, err := storage.NewDatabaseStorage(cfg.Storage.Database.Type, cfg.Storage.Database.DSN)
		if err != nil {
			log.Fatalf("failed to initialize database storage: %v", err)
		}
		backends = append(backends, dbStorage)
	}
	var store *storage.Manager
	if len(backends) > 0 {
		store = storage.NewManager(backends)
		defer store.Close()
		opts.Recorder = store
	}

	mon := monitor.New(registry, mailer, throttle, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mon.Run(ctx)

	// Cooldown, thresholds and the filter script can be retuned without
	// a restart
	err = config.WatchConfig(configPath, func(newCfg *config.Config) error {
		return mon.ApplyConfig(newCfg.Monitor)
	})
	if err != nil {
		logger.Warn("failed to watch config file: %v", err)
	} else {
		logger.Info("watching config file for changes")
	}

	logger.Info("ice machine monitor started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cancel()
	if publisher != nil {
		publisher.Disconnect()
	}
	logger.Info("service stopped")
}

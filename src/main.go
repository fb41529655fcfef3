package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ryansname/boilersim/src/anomaly"
	"github.com/ryansname/boilersim/src/api"
	"github.com/ryansname/boilersim/src/configstore"
	"github.com/ryansname/boilersim/src/history"
	"github.com/ryansname/boilersim/src/mentor"
	"github.com/ryansname/boilersim/src/metrics"
	"github.com/ryansname/boilersim/src/notify"
	"github.com/ryansname/boilersim/src/sim"
)

// Frame is one sample of the plant as seen by every downstream worker
type Frame struct {
	sim.Snapshot
	Risk anomaly.State `json:"risk"`

	// Display values, smoothed over the last samples
	DisplayBarycenter float64 `json:"display_barycenter"`
	DisplayPCI        float64 `json:"display_pci"`
}

// SafeGo launches a goroutine with panic recovery and retry logic.
// On panic, retries with exponential backoff (max 10 retries).
// Retry count resets if worker ran for 2+ minutes before failing.
// After exhausting retries, cancels context to trigger shutdown.
func SafeGo(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *zap.Logger,
	name string,
	fn func(ctx context.Context),
) {
	const maxRetries = 10
	const maxDelay = 10 * time.Minute
	const resetAfter = 2 * time.Minute

	go func() {
		retries := 0
		delay := time.Second

		for {
			startTime := time.Now()
			var panicValue any

			func() {
				defer func() {
					panicValue = recover()
				}()
				fn(ctx)
			}()

			// Returned normally: cancelled or finished
			if panicValue == nil {
				return
			}

			if time.Since(startTime) >= resetAfter {
				retries = 0
				delay = time.Second
			}

			retries++
			logger.Error("Worker panicked",
				zap.String("worker", name),
				zap.Int("attempt", retries),
				zap.Int("max_retries", maxRetries),
				zap.Any("panic", panicValue))

			if retries >= maxRetries {
				logger.Error("Worker failed too often, shutting down", zap.String("worker", name))
				cancel()
				return
			}

			logger.Info("Worker will retry", zap.String("worker", name), zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
				delay = min(delay*2, maxDelay)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func openConfigStore(ctx context.Context, cfg Config, logger *zap.Logger) (configstore.Store, error) {
	if cfg.FirebaseDBURL == "" {
		logger.Info("Using file configuration store", zap.String("path", cfg.ConfigFile))
		return configstore.NewFileStore(cfg.ConfigFile), nil
	}
	store, err := configstore.NewFirebaseStore(ctx, cfg.FirebaseDBURL, cfg.FirebaseServiceAccountJSON, logger.Named("firebase"))
	if err != nil {
		return nil, err
	}
	logger.Info("Using Firebase configuration store", zap.String("url", cfg.FirebaseDBURL))
	return store, nil
}

func openAlertSender(cfg Config, logger *zap.Logger) notify.Sender {
	if cfg.TelegramBotToken == "" {
		return nil
	}
	sender, err := notify.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID, logger.Named("telegram"))
	if err != nil {
		// alerts are optional; the simulator keeps running without them
		logger.Error("Telegram disabled", zap.Error(err))
		return nil
	}
	return sender
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if cfg.ConsoleEnabled {
		sink = rlWriter
	}
	logger, err := newLogger(cfg.LogLevel, cfg.ConsoleEnabled, sink)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting boilersim...")

	initial := sim.DefaultInitial()
	acceleration := cfg.TimeAcceleration
	if cfg.ScenarioFile != "" {
		sc, err := LoadScenario(cfg.ScenarioFile)
		if err != nil {
			return err
		}
		initial = sc.Initial()
		if sc.Acceleration != 0 {
			acceleration = sc.Acceleration
		}
		logger.Info("Scenario loaded", zap.String("name", sc.Name), zap.String("file", cfg.ScenarioFile))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	historyLog := history.NewLog(history.DefaultCapacity)
	historyStore := history.NewFileStore(cfg.HistoryFile)
	if points, err := historyStore.Load(); err != nil {
		logger.Warn("Could not restore history", zap.Error(err))
	} else if len(points) > 0 {
		historyLog.Replace(points)
		logger.Info("History restored", zap.Int("points", historyLog.Len()))
	}

	simulation := sim.New(sim.Options{
		Initial:      initial,
		Acceleration: acceleration,
		Seed:         cfg.Seed,
		History:      historyLog,
		Logger:       logger.Named("sim"),
	})

	configs, err := openConfigStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening configuration store: %w", err)
	}

	advisor, err := mentor.NewAdvisor(mentor.Options{
		ProxyURL: cfg.MentorProxyURL,
		Timeout:  cfg.MentorTimeout,
		Logger:   logger.Named("mentor"),
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	risk := &riskBoard{}
	alerter := notify.NewAlerter(openAlertSender(cfg, logger), cfg.Thresholds, logger.Named("alerts"))
	hub := api.NewHub(m, logger.Named("stream"))

	// Channels between workers
	frameChan := make(chan Frame, 10)
	anomalyChan := make(chan Frame, 10)
	streamChan := make(chan Frame, 10)
	consoleChan := make(chan Frame, 10)
	stateChan := make(chan Frame, 10)
	commandChan := make(chan CommandMessage, 20)
	mqttOutgoingChan := make(chan MQTTMessage, 100)
	mqttClientChan := make(chan mqtt.Client, 1)

	SafeGo(ctx, cancel, logger, "physics-worker", func(ctx context.Context) {
		physicsWorker(ctx, simulation, m)
	})

	SafeGo(ctx, cancel, logger, "sampler-worker", func(ctx context.Context) {
		samplerWorker(ctx, simulation, risk, SampleInterval, frameChan)
	})

	SafeGo(ctx, cancel, logger, "anomaly-worker", func(ctx context.Context) {
		anomalyWorker(ctx, anomalyChan, anomaly.NewDetector(cfg.Thresholds), alerter, risk, m, logger.Named("anomaly"))
	})

	SafeGo(ctx, cancel, logger, "stream-worker", func(ctx context.Context) {
		streamWorker(ctx, streamChan, hub, m, logger.Named("stream"))
	})

	SafeGo(ctx, cancel, logger, "history-worker", func(ctx context.Context) {
		historyWorker(ctx, historyLog, historyStore, cfg.HistoryFlushInterval, logger.Named("history"))
	})

	downstreamChans := []chan<- Frame{anomalyChan, streamChan}

	if cfg.MQTTBroker != "" {
		SafeGo(ctx, cancel, logger, "mqtt-sender-worker", func(ctx context.Context) {
			mqttSenderWorker(ctx, mqttOutgoingChan, mqttClientChan, logger.Named("mqtt"))
		})

		mqttSender := NewMQTTSender(mqttOutgoingChan)
		if err := mqttSender.CreateEntities(); err != nil {
			return fmt.Errorf("creating Home Assistant entities: %w", err)
		}
		logger.Info("Home Assistant entities created")

		downstreamChans = append(downstreamChans, stateChan)
		SafeGo(ctx, cancel, logger, "mqtt-state-worker", func(ctx context.Context) {
			mqttStateWorker(ctx, stateChan, mqttSender, StatePublishInterval, logger.Named("mqtt"))
		})

		SafeGo(ctx, cancel, logger, "command-worker", func(ctx context.Context) {
			commandWorker(ctx, commandChan, simulation, m, logger.Named("commands"))
		})

		SafeGo(ctx, cancel, logger, "mqtt-worker", func(ctx context.Context) {
			mqttWorker(ctx, cfg.MQTTBroker, cfg.MQTTUsername, cfg.MQTTPassword, cfg.MQTTClientID,
				commandChan, mqttClientChan, logger.Named("mqtt"))
		})
	} else {
		logger.Info("MQTT_BROKER not set, Home Assistant integration disabled")
	}

	if cfg.ConsoleEnabled {
		downstreamChans = append(downstreamChans, consoleChan)
		console := &Console{
			sim:     simulation,
			configs: configs,
			mentor:  advisor,
			risk:    risk,
			metrics: m,
			log:     logger.Named("console"),
		}
		SafeGo(ctx, cancel, logger, "console-worker", func(ctx context.Context) {
			consoleWorker(ctx, cancel, consoleChan, console)
		})
	}

	SafeGo(ctx, cancel, logger, "broadcast-worker", func(ctx context.Context) {
		broadcastWorker(ctx, frameChan, downstreamChans, logger.Named("broadcast"))
	})

	router := api.NewRouter(api.Deps{
		Sim:     simulation,
		Configs: configs,
		Mentor:  advisor,
		Risk:    risk,
		Hub:     hub,
		Metrics: m,
		Logger:  logger.Named("http"),
	})
	server := api.NewServer(cfg.HTTPAddr, router, logger.Named("http"))
	SafeGo(ctx, cancel, logger, "http-server", func(ctx context.Context) {
		if err := server.Run(ctx); err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	})

	// Wait for interrupt signal or context cancellation (from panic)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutting down...")
	case <-ctx.Done():
		logger.Info("Shutting down due to error...")
	}
	cancel()

	if err := historyStore.Save(historyLog.Points()); err != nil {
		logger.Error("Final history flush failed", zap.Error(err))
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "boilersim:", err)
		os.Exit(1)
	}
}

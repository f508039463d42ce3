// Package app wires the session core together: configuration, logging,
// storage, engines, event publishing and the turn machine.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"voice-qa-session/internal/config"
	"voice-qa-session/internal/events"
	"voice-qa-session/internal/observability"
	"voice-qa-session/internal/observability/logging"
	"voice-qa-session/internal/observability/metrics"
	"voice-qa-session/internal/service/capture"
	"voice-qa-session/internal/service/recognizer"
	"voice-qa-session/internal/service/recognizer/google"
	recsim "voice-qa-session/internal/service/recognizer/sim"
	"voice-qa-session/internal/service/synth"
	synthsim "voice-qa-session/internal/service/synth/sim"
	"voice-qa-session/internal/service/synth/ws"
	"voice-qa-session/internal/service/turn"
	"voice-qa-session/internal/store"
)

// Application holds process-wide state for the session core.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Store     store.Store
	Publisher *events.Publisher
	Capture   *capture.Engine
	Playback  *synth.Driver
	Machine   *turn.Machine

	obs *observability.Server
}

// New constructs an Application from the provided configuration and sets
// up the global logger. Components are built by Start.
func New(cfg *config.Configuration) *Application {
	a := &Application{Cfg: cfg}
	a.setupLogger()
	a.Logger.Info().Str("service", cfg.Service.Name).Msg("voice QA session application created")
	return a
}

// setupLogger configures zerolog for the service. ENV=dev switches to
// console output.
func (a *Application) setupLogger() {
	format := "json"
	if os.Getenv("ENV") == "dev" {
		format = "console"
	}
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     format,
		TimeFormat: time.RFC3339,
	})
	a.Logger = logging.Logger().With().
		Str("service", a.Cfg.Service.Name).
		Str("component", "application").
		Logger()
}

// Start builds storage, engines, the event publisher and the turn
// machine. notifier receives user-visible notices and may be nil.
func (a *Application) Start(ctx context.Context, notifier turn.Notifier) error {
	a.StartupTime = time.Now().UTC()

	a.Store = store.Open(store.Options{
		Dir:      a.Cfg.Store.Dir,
		InMemory: a.Cfg.Store.InMemory,
	}, logging.WithComponent("store"))

	a.Publisher = events.New(&events.Config{
		Enabled:          a.Cfg.Kafka.Enabled,
		Brokers:          a.Cfg.Kafka.Brokers,
		TopicTranscripts: a.Cfg.Kafka.TopicTranscripts,
		TopicSession:     a.Cfg.Kafka.TopicSession,
		Principal:        a.Cfg.Kafka.Principal,
	})

	rec, err := a.buildRecognizer(ctx)
	if err != nil {
		return fmt.Errorf("recognizer: %w", err)
	}
	a.Capture = capture.New(rec, capture.Config{
		SilenceTimeout: a.Cfg.Capture.SilenceTimeout,
		InitialTimeout: a.Cfg.Capture.InitialTimeout,
		SettleDelay:    a.Cfg.Capture.SettleDelay,
	}, logging.WithComponent("capture"), metrics.DefaultMetrics)

	a.Playback = synth.NewDriver(a.buildSynth(), logging.WithComponent("synth"), metrics.DefaultMetrics)

	a.Machine = turn.New(turn.Deps{
		Listener:  a.Capture,
		Speaker:   a.Playback,
		Store:     a.Store,
		Publisher: a.Publisher,
		Notifier:  notifier,
		Metrics:   metrics.DefaultMetrics,
		Log:       logging.WithComponent("turn"),
	}, turn.Config{
		RelistenCooldown: a.Cfg.Capture.RelistenCooldown,
	})

	if a.Cfg.Observability.Enabled {
		a.obs = observability.NewServer(a.Cfg.Observability.HTTPAddr, func() bool {
			return a.Capture.Available() && a.Playback.Available()
		})
		a.obs.Start()
	}

	a.Logger.Info().
		Str("recognizer", a.Cfg.Recognizer.Provider).
		Str("synth", a.Cfg.Synth.Provider).
		Str("storeDir", a.Cfg.Store.Dir).
		Msg("voice QA session core started")
	return nil
}

// buildRecognizer selects the recognition capability. The google provider
// streams audio frames from stdin; the sim provider replays the demo
// script.
func (a *Application) buildRecognizer(ctx context.Context) (recognizer.Capability, error) {
	switch a.Cfg.Recognizer.Provider {
	case "google":
		return google.New(ctx, google.Config{
			LanguageCode:   a.Cfg.Recognizer.LanguageCode,
			SampleRateHz:   a.Cfg.Recognizer.SampleRateHz,
			InterimResults: a.Cfg.Recognizer.InterimResults,
		}, os.Stdin)
	default:
		return recsim.NewScripted(recsim.DefaultScript, 150*time.Millisecond), nil
	}
}

// buildSynth selects the playback capability. The ws provider speaks a
// JSON-over-websocket synthesis protocol; decoded audio is discarded
// here since playback hardware is outside the core.
func (a *Application) buildSynth() synth.Capability {
	switch a.Cfg.Synth.Provider {
	case "ws":
		return ws.NewClient(ws.Config{
			URL:   a.Cfg.Synth.WSURL,
			Voice: a.Cfg.Synth.Voice,
			Token: a.Cfg.Synth.Token,
		}, io.Discard)
	default:
		return synthsim.New(200 * time.Millisecond)
	}
}

// Shutdown performs a best-effort teardown: the machine first so engine
// operations stop, then the outer resources.
func (a *Application) Shutdown() {
	a.Logger.Info().Msg("voice QA session core shutting down")

	if a.Machine != nil {
		a.Machine.Stop()
	}
	if a.obs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.obs.Shutdown(ctx)
		cancel()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("error closing event publisher")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("error closing session store")
		}
	}
}

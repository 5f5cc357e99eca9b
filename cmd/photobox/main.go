package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cjeanneret/photobox/internal/config"
	"github.com/cjeanneret/photobox/internal/hw/button"
	"github.com/cjeanneret/photobox/internal/hw/camera"
	"github.com/cjeanneret/photobox/internal/hw/display"
	"github.com/cjeanneret/photobox/internal/hw/gpio"
	"github.com/cjeanneret/photobox/internal/logic/orchestrator"
	"github.com/cjeanneret/photobox/internal/logic/presenter"
	"github.com/cjeanneret/photobox/internal/logic/quota"
	"github.com/cjeanneret/photobox/internal/logic/trigger"
	"github.com/cjeanneret/photobox/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	oneShot := flag.Bool("shot", false, "take one capture immediately and exit")
	flag.Parse()

	// Optional .env (missing file is fine); PHOTOBOX_CONFIG overrides -config defaults
	_ = godotenv.Load()
	if env := os.Getenv("PHOTOBOX_CONFIG"); env != "" && !flagPassed("config") {
		*cfgPath = env
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}

	// Log stream broadcaster is wired before the logger so every line
	// reaches /logs/stream subscribers too.
	logBroadcaster := web.NewBroadcaster()
	initLogging(cfg.Defaults.LogLevel, logBroadcaster)
	log.Info().Str("config", *cfgPath).Msg("photobox starting")

	// Initialize GPIO driver
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatal().Err(err).Msg("init GPIO failed")
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Warn().Err(err).Msg("closing GPIO driver failed")
		}
	}()

	// Initialize display
	disp, err := newDisplayFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init display failed")
	}

	// Initialize camera
	cam, err := newCameraFromConfig(gpioDriver, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init camera failed")
	}

	// Quota state
	quotaStore, err := quota.Load(cfg.Quota.StateFile, cfg.Quota.DailyLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("load quota state failed")
	}
	log.Info().Int("remaining", quotaStore.Remaining()).Int("limit", quotaStore.Limit()).Msg("quota loaded")

	// Presenter and orchestrator
	pres := presenter.New(disp, presenter.Config{
		Tick:          cfg.AnimationTick(),
		PointCount:    cfg.Animation.PointCount,
		RelocateEvery: cfg.Animation.RelocateEveryTicks,
	}, nil)
	defer func() {
		if err := pres.Close(); err != nil {
			log.Warn().Err(err).Msg("closing display failed")
		}
	}()

	events := web.NewBroadcaster()
	orch := orchestrator.New(ctx, orchestrator.Config{
		CountdownFrom:       cfg.Sequence.CountdownFrom,
		CountdownInterval:   cfg.CountdownInterval(),
		SafetyTimeout:       cfg.SafetyTimeout(),
		SettleDelay:         cfg.SettleDelay(),
		NotifyOnFailure:     cfg.Sequence.NotifyOnFailure,
		ReleaseBeforeSettle: cfg.Sequence.ReleaseBeforeSettle,
	}, cam, pres, quotaStore, events)
	defer orch.Wait()
	dispatcher := trigger.New(orch)

	if *oneShot {
		if _, err := dispatcher.Fire(orchestrator.SourceHTTP); err != nil {
			log.Fatal().Err(err).Msg("capture failed")
		}
		return
	}

	// Physical button. The idle screen goes up first so a press cannot
	// race the initial render.
	btn, err := button.New(gpioDriver, cfg.Button.Pin, cfg.PollInterval(), cfg.Debounce())
	if err != nil {
		log.Fatal().Err(err).Msg("init button failed")
	}
	pres.ShowIdle(quotaStore.Remaining())
	go func() {
		if err := btn.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("button loop stopped")
		}
	}()
	go dispatcher.RunButtonLoop(ctx, btn.Presses())

	if port := webPort.port(); port > 0 {
		handlers := web.NewHandlers(dispatcher, quotaStore, events, logBroadcaster, web.StaticFS())
		srv := web.NewServer(fmt.Sprintf(":%d", port), handlers, cfg.Camera.OutputDir)
		if err := srv.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("web server failed")
		}
		return
	}

	<-ctx.Done()
	log.Info().Msg("photobox stopping")
}

// initLogging configures the global zerolog logger: console output for
// the operator plus a tee into the SSE log broadcaster.
func initLogging(levelName string, b *web.Broadcaster) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	log.Logger = zerolog.New(io.MultiWriter(console, web.Writer(b))).
		Level(level).
		With().Timestamp().Logger()
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

// newDisplayFromConfig selects a display implementation based on configuration.
func newDisplayFromConfig(cfg *config.Config) (display.Driver, error) {
	switch cfg.Display.Type {
	case "server":
		return display.NewServerDisplay(cfg.Display.Command, cfg.DisplayCommandTimeout())
	case "none":
		return display.NullDisplay{}, nil
	default:
		return nil, fmt.Errorf("unsupported display type: %s", cfg.Display.Type)
	}
}

// newCameraFromConfig selects a camera implementation based on configuration.
func newCameraFromConfig(g gpio.Driver, cfg *config.Config) (camera.Camera, error) {
	switch cfg.Camera.Type {
	case "command":
		return camera.NewCommandCamera(cfg.Camera.Command, cfg.Camera.OutputDir)
	case "remote_shutter_gpio":
		return camera.NewRemoteShutterGPIO(
			g,
			cfg.Camera.FocusPin,
			cfg.Camera.ShutterPin,
			cfg.FocusDelay(),
			cfg.ShutterDelay(),
		), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

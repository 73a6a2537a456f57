package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/framegrab/cmd"
	"github.com/smazurov/framegrab/internal/api"
	"github.com/smazurov/framegrab/internal/bridge"
	"github.com/smazurov/framegrab/internal/config"
	"github.com/smazurov/framegrab/internal/convert"
	"github.com/smazurov/framegrab/internal/events"
	"github.com/smazurov/framegrab/internal/frame"
	"github.com/smazurov/framegrab/internal/logging"
	"github.com/smazurov/framegrab/internal/observer"
	"github.com/smazurov/framegrab/internal/pipeline"
	"github.com/smazurov/framegrab/internal/pixel"
	"github.com/smazurov/framegrab/internal/source"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Pipeline settings
	PipelineOutputFormat  string `help:"Delivery pixel format, empty for as-captured" default:"rgb24" toml:"pipeline.output_format" env:"PIPELINE_OUTPUT_FORMAT"`
	PipelineOrientation   string `help:"Delivery row order (top-down, bottom-up)" default:"top-down" toml:"pipeline.orientation" env:"PIPELINE_ORIENTATION"`
	PipelineMatrix        string `help:"YUV colorimetry matrix (bt601, bt709)" default:"bt601" toml:"pipeline.matrix" env:"PIPELINE_MATRIX"`
	PipelineBackend       string `help:"Conversion backend policy (auto, scalar, or name)" default:"auto" toml:"pipeline.backend" env:"PIPELINE_BACKEND"`
	PipelineMaxAvailable  int    `help:"Bound on frames awaiting consumers" default:"8" toml:"pipeline.max_available_frames" env:"PIPELINE_MAX_AVAILABLE"`
	PipelineMaxCached     int    `help:"Bound on the frame reuse pool" default:"16" toml:"pipeline.max_cached_frames" env:"PIPELINE_MAX_CACHED"`

	// Capture settings
	CaptureEnabled bool   `help:"Start the synthetic capture source" default:"false" toml:"capture.enabled" env:"CAPTURE_ENABLED"`
	CaptureWidth   int    `help:"Capture width in pixels" default:"1280" toml:"capture.width" env:"CAPTURE_WIDTH"`
	CaptureHeight  int    `help:"Capture height in pixels" default:"720" toml:"capture.height" env:"CAPTURE_HEIGHT"`
	CaptureFormat  string `help:"Capture pixel format" default:"nv12" toml:"capture.format" env:"CAPTURE_FORMAT"`
	CaptureFPS     int    `help:"Capture frame rate" default:"30" toml:"capture.fps" env:"CAPTURE_FPS"`

	// AMQP bridge settings
	AmqpURL        string `help:"AMQP broker URL, empty disables the event bridge" default:"" toml:"amqp.url" env:"AMQP_URL"`
	AmqpExchange   string `help:"AMQP exchange name" default:"framegrab.events" toml:"amqp.exchange" env:"AMQP_EXCHANGE"`
	AmqpRoutingKey string `help:"AMQP routing key prefix" default:"framegrab" toml:"amqp.routing_key" env:"AMQP_ROUTING_KEY"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPipeline string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingConvert  string `help:"Conversion engine logging level" default:"info" toml:"logging.convert" env:"LOGGING_CONVERT"`
	LoggingSource   string `help:"Capture source logging level" default:"info" toml:"logging.source" env:"LOGGING_SOURCE"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingBridge   string `help:"AMQP bridge logging level" default:"info" toml:"logging.bridge" env:"LOGGING_BRIDGE"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"pipeline": opts.LoggingPipeline,
				"convert":  opts.LoggingConvert,
				"source":   opts.LoggingSource,
				"api":      opts.LoggingAPI,
				"bridge":   opts.LoggingBridge,
			},
		})
		logger := logging.GetLogger("main")

		outFormat := pixel.FormatNone
		if opts.PipelineOutputFormat != "" {
			parsed, err := pixel.Parse(opts.PipelineOutputFormat)
			if err != nil {
				logger.Warn("Bad output format, delivering as captured", "value", opts.PipelineOutputFormat, "error", err)
			} else {
				outFormat = parsed
			}
		}
		orient := frame.TopDown
		if opts.PipelineOrientation == "bottom-up" {
			orient = frame.BottomUp
		}
		matrix, err := convert.ParseMatrix(opts.PipelineMatrix)
		if err != nil {
			logger.Warn("Bad colorimetry matrix, using bt601", "value", opts.PipelineMatrix)
		}

		bus := events.New()
		pipelineLogger := logging.GetLogger("pipeline")
		pipe := pipeline.New(pipeline.Config{
			OutputFormat:       outFormat,
			OutputOrientation:  orient,
			Matrix:             matrix,
			MaxAvailableFrames: opts.PipelineMaxAvailable,
			MaxCachedFrames:    opts.PipelineMaxCached,
		}, nil, observer.Slog(pipelineLogger), pipelineLogger, bus)

		if policy, policyErr := convert.ParsePolicy(opts.PipelineBackend); policyErr != nil {
			logger.Warn("Bad backend policy, using auto", "value", opts.PipelineBackend)
		} else {
			pipe.SetBackendPolicy(policy)
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Pipeline:          pipe,
			PrometheusHandler: promhttp.Handler(),
		})

		// Reload pipeline settings when the config file changes
		watcher := config.NewConfigWatcher(
			opts.Config,
			config.LoadPipelineConfig,
			pipelineLogger,
			config.WithDebounce[config.PipelineConfig](1500*time.Millisecond),
		)
		watcher.OnReload(func(cfg config.PipelineConfig) {
			cmd.ApplyPipelineConfig(pipe, cfg)
		})

		var stopCapture context.CancelFunc
		var stopBridge context.CancelFunc

		hooks.OnStart(func() {
			pipe.Start()

			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", startErr)
			}

			if opts.AmqpURL != "" {
				var bridgeCtx context.Context
				bridgeCtx, stopBridge = context.WithCancel(context.Background())
				eventBridge := bridge.New(bridge.Config{
					URL:        opts.AmqpURL,
					Exchange:   opts.AmqpExchange,
					RoutingKey: opts.AmqpRoutingKey,
				}, bus)
				go func() {
					if runErr := eventBridge.Run(bridgeCtx); runErr != nil && !errors.Is(runErr, context.Canceled) {
						logger.Warn("Event bridge stopped", "error", runErr)
					}
				}()
			}

			if opts.CaptureEnabled {
				captureFormat, parseErr := pixel.Parse(opts.CaptureFormat)
				if parseErr != nil {
					logger.Error("Bad capture format", "value", opts.CaptureFormat, "error", parseErr)
				} else {
					var captureCtx context.Context
					captureCtx, stopCapture = context.WithCancel(context.Background())
					src := &source.Synthetic{
						Width:  opts.CaptureWidth,
						Height: opts.CaptureHeight,
						Format: captureFormat,
						FPS:    opts.CaptureFPS,
					}
					go func() {
						if runErr := src.Run(captureCtx, pipe.Deliver); runErr != nil && !errors.Is(runErr, context.Canceled) {
							logger.Error("Capture source stopped", "error", runErr)
						}
					}()
				}
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopCapture != nil {
				stopCapture()
			}
			if stopBridge != nil {
				stopBridge()
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			pipe.Stop()
		})
	})

	cli.Root().AddCommand(cmd.CreateGrabCmd())
	cli.Root().AddCommand(cmd.CreateFormatsCmd())
	cli.Root().AddCommand(cmd.CreateBenchCmd())

	cli.Run()
}

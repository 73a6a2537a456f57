// Package cmd holds the cobra subcommands for capture, inspection, and
// benchmarking.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

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

// CreateGrabCmd creates the grab command: capture frames from the
// synthetic source through the pipeline and optionally dump them to disk.
func CreateGrabCmd() *cobra.Command {
	var (
		width        int
		height       int
		srcFormat    string
		outFormat    string
		matrixName   string
		backend      string
		fps          int
		count        int
		outDir       string
		configFile   string
		logJSON      bool
		bottomUp     bool
	)

	cmd := &cobra.Command{
		Use:   "grab",
		Short: "Capture frames through the conversion pipeline",
		Long: `Runs the synthetic frame source through the delivery pipeline, converting ` +
			`to the requested output format, and reports per-frame delivery. With --out, ` +
			`raw frame payloads are written to numbered files.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("grab")

			sf, err := pixel.Parse(srcFormat)
			if err != nil {
				return fmt.Errorf("source format: %w", err)
			}
			of := pixel.FormatNone
			if outFormat != "" {
				if of, err = pixel.Parse(outFormat); err != nil {
					return fmt.Errorf("output format: %w", err)
				}
			}
			matrix, err := convert.ParseMatrix(matrixName)
			if err != nil {
				return err
			}
			policy, err := convert.ParsePolicy(backend)
			if err != nil {
				return err
			}

			orient := frame.TopDown
			if bottomUp {
				orient = frame.BottomUp
			}

			bus := events.New()
			sink := observer.Slog(logger)
			pipe := pipeline.New(pipeline.Config{
				OutputFormat:      of,
				OutputOrientation: orient,
				Matrix:            matrix,
			}, nil, sink, logger, bus)
			pipe.SetBackendPolicy(policy)
			pipe.Start()
			defer pipe.Stop()

			// Hot-reload pipeline settings from the config file
			if configFile != "" {
				watcher := config.NewConfigWatcher(
					configFile,
					config.LoadPipelineConfig,
					logger,
					config.WithDebounce[config.PipelineConfig](1500*time.Millisecond),
				)
				watcher.OnReload(func(cfg config.PipelineConfig) {
					ApplyPipelineConfig(pipe, cfg)
				})
				if err := watcher.Start(); err != nil {
					logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
				} else {
					defer func() { _ = watcher.Stop() }()
				}
			}

			src := &source.Synthetic{Width: width, Height: height, Format: sf, FPS: fps}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			runCtx, stopSource := context.WithCancel(ctx)
			defer stopSource()

			srcErr := make(chan error, 1)
			go func() { srcErr <- src.Run(runCtx, pipe.Deliver) }()

			grabbed := 0
			for grabbed < count {
				f := pipe.Grab(2 * time.Second)
				if f == nil {
					if ctx.Err() != nil {
						break
					}
					logger.Warn("No frame within timeout")
					continue
				}
				logger.Info("Frame delivered",
					"index", f.FrameIndex,
					"format", f.Format.String(),
					"size_bytes", f.SizeBytes,
					"orientation", f.Orientation.String())
				if outDir != "" {
					if err := writeFrame(outDir, f); err != nil {
						f.Release()
						return err
					}
				}
				f.Release()
				grabbed++
			}

			stopSource()
			<-srcErr

			stats := pipe.Stats()
			logger.Info("Capture complete",
				"published", stats.FramesPublished,
				"delivered", stats.FramesDelivered,
				"dropped", stats.FramesDropped,
				"conversions", stats.Conversions,
				"backend", stats.Backend)
			return nil
		},
	}

	cmd.Flags().IntVar(&width, "width", 640, "Frame width in pixels")
	cmd.Flags().IntVar(&height, "height", 480, "Frame height in pixels")
	cmd.Flags().StringVar(&srcFormat, "format", "nv12", "Source pixel format")
	cmd.Flags().StringVar(&outFormat, "output-format", "rgb24", "Output pixel format, empty for as-captured")
	cmd.Flags().StringVar(&matrixName, "matrix", "bt601", "YUV colorimetry matrix (bt601, bt709)")
	cmd.Flags().StringVar(&backend, "backend", "auto", "Conversion backend policy")
	cmd.Flags().IntVar(&fps, "fps", 30, "Synthetic source frame rate")
	cmd.Flags().IntVar(&count, "count", 10, "Number of frames to grab")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory to write raw frame payloads")
	cmd.Flags().StringVar(&configFile, "config", "", "Config file to watch for pipeline settings")
	cmd.Flags().BoolVar(&bottomUp, "bottom-up", false, "Deliver frames bottom-up")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// ApplyPipelineConfig pushes reloaded settings into a running pipeline.
// Zero values leave the corresponding setting untouched.
func ApplyPipelineConfig(pipe *pipeline.Pipeline, cfg config.PipelineConfig) {
	logger := logging.GetLogger("pipeline")

	if cfg.OutputFormat != "" {
		format, err := pixel.Parse(cfg.OutputFormat)
		if err != nil {
			logger.Warn("Reload: bad output format", "value", cfg.OutputFormat, "error", err)
		} else {
			orient := frame.TopDown
			if cfg.Orientation == "bottom-up" {
				orient = frame.BottomUp
			}
			pipe.SetOutputFormat(format, orient)
		}
	}
	if cfg.Backend != "" {
		policy, err := convert.ParsePolicy(cfg.Backend)
		if err != nil {
			logger.Warn("Reload: bad backend policy", "value", cfg.Backend, "error", err)
		} else {
			pipe.SetBackendPolicy(policy)
		}
	}
	if cfg.MaxAvailableFrames > 0 {
		pipe.SetMaxAvailableFrames(cfg.MaxAvailableFrames)
	}
	if cfg.MaxCachedFrames > 0 {
		pipe.SetMaxCachedFrames(cfg.MaxCachedFrames)
	}
}

// writeFrame dumps every plane of a frame to a single raw file.
func writeFrame(dir string, f *frame.Frame) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(dir, fmt.Sprintf("frame_%06d.%s.raw", f.FrameIndex, f.Format.String()))
	out, err := os.Create(name)
	if err != nil {
		return err
	}
	defer out.Close()

	for plane := 0; plane < f.Format.PlaneCount(); plane++ {
		if _, err := out.Write(f.Data[plane]); err != nil {
			return err
		}
	}
	return nil
}

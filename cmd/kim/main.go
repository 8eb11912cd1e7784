package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kimlabs/kim-voice/internal/app"
	"github.com/kimlabs/kim-voice/internal/audio"
	"github.com/kimlabs/kim-voice/internal/config"
	"github.com/kimlabs/kim-voice/internal/logging"
	"github.com/kimlabs/kim-voice/internal/models"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile     = flag.String("config", "", "Path to configuration file (default: ~/.kimrc or /etc/kim/config.yaml)")
	listModels     = flag.Bool("list-models", false, "List all available models for download")
	listDownloaded = flag.Bool("list-downloaded", false, "List all downloaded models")
	downloadModel  = flag.String("download-model", "", "Download a specific model by name")
	modelPath      = flag.String("model", "", "Vosk model name or directory path")
	wakeWord       = flag.String("wake-word", "", "Wake phrase that activates command capture")
	deviceIndex    = flag.Int("device", -1, "Audio input device index (use --list-devices to see available devices)")
	listDevices    = flag.Bool("list-devices", false, "List all available audio input devices")
	enableVAD      = flag.Bool("vad", false, "Gate the command recognizer with voice activity detection")
	localOnly      = flag.Bool("local-only", true, "Handle commands locally without any network dispatch")
	logLevel       = flag.String("log-level", "", "Log level: debug, info, warn, error")
	showVersion    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Kim v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	if *listDevices {
		if err := printDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *listModels {
		printCatalog()
		return
	}

	if *listDownloaded {
		if err := printDownloaded(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *downloadModel != "" {
		if err := download(*downloadModel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		cfg = config.Default()
	}
	applyConfigDefaults(cfg)

	log, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting",
		zap.String("version", Version),
		zap.String("commit", GitCommit))

	assistant, err := app.NewAssistant(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := assistant.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutting down")
	return nil
}

// applyConfigDefaults overlays explicitly set flags on the loaded
// configuration.
func applyConfigDefaults(cfg *config.Config) {
	flagsSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		flagsSet[f.Name] = true
	})

	if flagsSet["model"] {
		cfg.Model.Path = *modelPath
	}
	if flagsSet["wake-word"] {
		cfg.Wake.Phrase = *wakeWord
	}
	if flagsSet["device"] && *deviceIndex >= 0 {
		idx := *deviceIndex
		cfg.Audio.DeviceIndex = &idx
	}
	if flagsSet["vad"] {
		cfg.Capture.UseVAD = *enableVAD
	}
	if flagsSet["local-only"] {
		cfg.LocalOnly = *localOnly
	}
	if flagsSet["log-level"] {
		cfg.Logging.Level = *logLevel
	}
}

func printDevices() error {
	devices, err := audio.ListDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No audio capture devices found.")
		return nil
	}
	fmt.Println("Available audio capture devices:")
	for _, d := range devices {
		fmt.Printf("  %s\n", d)
	}
	return nil
}

func printCatalog() {
	fmt.Println("Available models for download:")
	fmt.Println()
	for i, model := range models.Catalog {
		fmt.Printf("%d. %s\n", i+1, model.Name)
		fmt.Printf("   Language: %s\n", model.Language)
		fmt.Printf("   Size:     %s\n", model.Size)
		fmt.Printf("   Info:     %s\n", model.Description)
		if downloaded, _ := models.IsDownloaded(model.Name); downloaded {
			fmt.Printf("   Status:   Downloaded\n")
		} else {
			fmt.Printf("   Status:   Not downloaded\n")
		}
		fmt.Println()
	}
	fmt.Println("To download a model, use:")
	fmt.Println("  kim --download-model <model-name>")
}

func printDownloaded() error {
	downloaded, err := models.ListDownloaded()
	if err != nil {
		return fmt.Errorf("error listing models: %w", err)
	}
	if len(downloaded) == 0 {
		fmt.Println("No models downloaded yet.")
		fmt.Println()
		fmt.Println("Use 'kim --list-models' to see available models")
		return nil
	}
	fmt.Printf("Downloaded models (%d):\n", len(downloaded))
	for _, name := range downloaded {
		if name == models.DefaultModelName {
			fmt.Printf("  %s [DEFAULT]\n", name)
		} else {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func download(name string) error {
	model := models.Find(name)
	if model == nil {
		fmt.Fprintf(os.Stderr, "Unknown model '%s'\n", name)
		fmt.Println("Use 'kim --list-models' to see available models")
		return fmt.Errorf("unknown model: %s", name)
	}

	if downloaded, err := models.IsDownloaded(name); err != nil {
		return fmt.Errorf("error checking model: %w", err)
	} else if downloaded {
		fmt.Printf("Model '%s' is already downloaded.\n", name)
		return nil
	}

	fmt.Printf("Downloading model: %s (%s)\n", model.Name, model.Size)
	err := models.Download(name, func(downloaded, total int64) {
		if total > 0 {
			fmt.Printf("\rProgress: %.1f%% (%d/%d bytes)", float64(downloaded)/float64(total)*100, downloaded, total)
		}
	})
	if err != nil {
		return fmt.Errorf("error downloading model: %w", err)
	}
	fmt.Printf("\nModel '%s' downloaded successfully!\n", name)
	return nil
}

package main

import (
	"embed"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"golang.design/x/hotkey/mainthread"

	"github.com/taylor-r-miller/SlowQuit/internal/config"
	"github.com/taylor-r-miller/SlowQuit/internal/logging"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	var (
		configPath  = flag.String("config", "", "Path to config.yaml (default: user support dir)")
		headless    = flag.Bool("headless", false, "Run without a window, using osascript dialogs")
		printSchema = flag.Bool("print-config-schema", false, "Print the config file JSON schema and exit")
		logLevel    = flag.String("log-level", "", "Override the configured log level")
	)
	flag.Parse()

	if *printSchema {
		data, err := config.Schema()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(data))
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("SlowQuit failed to load config: %v", err)
	}
	if err := overrideLogLevel(cfg, *logLevel); err != nil {
		log.Fatalf("SlowQuit invalid -log-level: %v", err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(os.Stderr, level)
	logger.Info("SlowQuit starting", "headless", *headless, "flow", cfg.PermissionFlow, "shortcut", cfg.Hotkey.Shortcut)

	app, err := NewApp(cfg, logger, *headless)
	if err != nil {
		logger.Error("SlowQuit failed to initialise", "error", err)
		os.Exit(1)
	}

	// Set up signal handling for graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("received shutdown signal, cleaning up")
		app.shutdownHotkey()
		os.Exit(0)
	}()

	if *headless {
		mainthread.Init(func() {
			if err := app.runHeadless(); err != nil {
				logger.Error("SlowQuit headless run failed", "error", err)
				os.Exit(1)
			}
		})
		return
	}

	err = wails.Run(&options.App{
		Title:  "SlowQuit",
		Width:  480,
		Height: 320,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 0, G: 0, B: 0, A: 0},
		DisableResize:    true,
		OnStartup:        app.startup,
		OnDomReady:       app.domReady,
		OnShutdown:       app.onShutdown,
		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId:               "slowquit-unique-id",
			OnSecondInstanceLaunch: app.OnSecondInstanceLaunch,
		},
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			TitleBar: &mac.TitleBar{
				TitlebarAppearsTransparent: true,
				HideTitle:                  true,
				FullSizeContent:            true,
			},
			WebviewIsTransparent: true,
			WindowIsTranslucent:  true,
		},
		Menu:        app.createMenuBar(),
		StartHidden: false,
	})
	if err != nil {
		logger.Error("SlowQuit failed to start", "error", err)
		os.Exit(1)
	}

	logger.Info("SlowQuit exited normally")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

// overrideLogLevel applies the -log-level flag, held to the same rules as the
// config file.
func overrideLogLevel(cfg *config.Config, level string) error {
	if level == "" {
		return nil
	}
	cfg.LogLevel = level
	return cfg.Validate()
}

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Forge-Media/teamspeak-bot/common/environment"
	"github.com/Forge-Media/teamspeak-bot/common/redact"
	"github.com/Forge-Media/teamspeak-bot/common/version"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/app"
	"github.com/Forge-Media/teamspeak-bot/internal/jarvis/config"
)

func main() {
	fmt.Printf("Jarvis TeamSpeak Bot\n")
	fmt.Printf("Version: %s\n", version.Info())
	fmt.Println()

	defaultPath := environment.StringOr("JARVIS_CONFIG", "./jarvis.yaml")
	configPath := flag.String("config", defaultPath, "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"file", *configPath,
		"serverquery", redact.String(
			fmt.Sprintf("%s@%s sid=%d", cfg.ServerQuery.Username, cfg.ServerQuery.Addr, cfg.ServerQuery.ServerID),
			cfg.ServerQuery.Password),
		"relay", cfg.RelayEnabled(),
		"csgo", cfg.CSGOEnabled(),
		"lol", cfg.LOLEnabled(),
	)

	jarvis, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Jarvis: %v\n", err)
		os.Exit(1)
	}
	defer jarvis.Stop()

	if err := jarvis.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Jarvis: %v\n", err)
		os.Exit(1)
	}
}

/*
Package main implements the kana-kanji conversion server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

KanaServe converts phonetic input (romaji or kana) into ranked Japanese
candidates. Readings are looked up in a Patricia trie dictionary, assembled
into a lattice and searched for the cheapest segmentations under a
pluggable scoring model. It can run as a MessagePack IPC server for editors
and input method frontends, as a CLI for testing, or as a dictionary
build tool.

# Usage

Start the server with default settings:

	kanaserve

Use a custom dictionary and class bigram weights with debug logging:

	kanaserve -data dict.tsv -weights weights.toml -d

Run in CLI mode for interactive testing:

	kanaserve -c -limit 10

Convert a text dictionary into the binary, chunked or sqlite formats:

	kanaserve -data dict.tsv -build dict.bin
	kanaserve -data dict.tsv -build chunks/ -chunk 20000
	kanaserve -data dict.tsv -build dict.db

# Dictionaries

A text dictionary holds one entry per line, tab separated:

	reading	surface	cost	[class]

Lower cost means a likelier entry. The loader accepts the text format, the
binary format written by -build, a directory of dict_NNNN.bin chunks and
sqlite databases. The format is detected from the extension or file header.

# Configuration

Runtime configuration is a TOML (or YAML) file created with defaults on
first run:

	[server]
	max_sessions = 256
	max_buffer = 256
	watch_config = true

	[dict]
	path = "data"
	weights_path = ""

	[convert]
	max_candidates = 20
	prediction = true

The server reloads [server] limits and [convert] options when the file changes.

# IPC Protocol

See package server for the message format.

	{"id": "1", "op": "create"}
	{"id": "2", "op": "insert", "sid": "s1", "text": "seido"}
	{"id": "3", "op": "candidates", "sid": "s1"}

# Command Line Flags

	-data string
	    Dictionary file or chunk directory (default from config)
	-weights string
	    Scoring weights file, .toml or .msgpack (default from config)
	-config string
	    Config file path
	-d  Enable debug mode with detailed logging
	-c  Run in CLI mode instead of server mode
	-limit int
	    Number of candidates shown in CLI mode
	-ctx string
	    Left context for CLI conversions
	-build string
	    Write the loaded dictionary to this path and exit
	-chunk int
	    Entries per chunk when -build targets a directory
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bastiangx/kanaserve/internal/cli"
	"github.com/bastiangx/kanaserve/internal/logger"
	"github.com/bastiangx/kanaserve/internal/utils"
	"github.com/bastiangx/kanaserve/pkg/config"
	"github.com/bastiangx/kanaserve/pkg/convert"
	"github.com/bastiangx/kanaserve/pkg/server"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.3.0-beta"
	AppName = "kanaserve"
	gh      = "https://github.com/bastiangx/kanaserve"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

// main only manages the flow between config, engine and the selected mode.
func main() {
	sigHandler()
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	dataPath := flag.String("data", "", "Dictionary file or chunk directory (overrides config)")
	weightsPath := flag.String("weights", "", "Scoring weights file (overrides config)")
	configFile := flag.String("config", "", "Path to a config file")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	limit := flag.Int("limit", 0, "Number of candidates to show in CLI mode (default from config)")
	leftContext := flag.String("ctx", "", "Left context for CLI conversions (default from config)")
	buildOut := flag.String("build", "", "Write the dictionary to this .bin, .db or directory path and exit")
	chunkSize := flag.Int("chunk", defaultConfig.Dict.ChunkSize, "Entries per chunk when building a chunk directory")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger.Setup(*debugMode)

	appConfig, configPath, err := config.LoadConfigWithPriority(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(configPath))

	if *dataPath != "" {
		appConfig.Dict.Path = *dataPath
	}
	if *weightsPath != "" {
		appConfig.Dict.WeightsPath = *weightsPath
	}

	pathResolver, err := utils.NewPathResolver()
	if err != nil {
		log.Print("Either env is not set or system is not supported")
		log.Fatalf("Failed to initialize path resolver: %v", err)
	}
	engineConfig := appConfig.EngineConfig(pathResolver)
	log.Debug("Resources", "dict", engineConfig.DictionaryPath, "weights", engineConfig.WeightPath)

	if *buildOut != "" {
		if err := buildDictionary(engineConfig.DictionaryPath, *buildOut, *chunkSize, engineConfig.MaxEntries); err != nil {
			log.Fatalf("Build failed: %v", err)
		}
		return
	}

	engine := convert.NewEngine(engineConfig)
	preloadErr := engine.Preload(context.Background())

	// NOTE: CLI needs a working dictionary up front, the server reports load
	// failures per request instead.
	if *cliMode {
		if preloadErr != nil {
			log.Fatalf("Failed to load resources: %v", preloadErr)
		}
		log.SetReportTimestamp(false)
		n := appConfig.CLI.DefaultLimit
		if *limit > 0 {
			n = *limit
		}
		ctxText := appConfig.CLI.DefaultContext
		if *leftContext != "" {
			ctxText = *leftContext
		}
		log.Debug("Input info:", "limit", n, "ctx", ctxText)

		inputHandler := cli.NewInputHandler(engine, n, ctxText)
		if err := inputHandler.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	if preloadErr != nil {
		log.Errorf("Default resources failed to load: %v", preloadErr)
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(engine, appConfig, configPath)
	showStartupInfo(engineConfig.DictionaryPath, engine.Stats())

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func printVersion() {
	banner := logger.NewWithConfig("", log.InfoLevel, false, false, log.TextFormatter)

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	banner.SetStyles(styles)

	banner.Print("")
	banner.Print("[ KanaServe ] kana to kanji conversions over IPC")
	banner.Print("", "version", Version)
	banner.Print("")
	banner.Print("use -h or --help to see available options")
	banner.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process.
func showStartupInfo(dictPath string, stats map[string]int) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)
	defer log.SetLevel(currentLevel)

	fmt.Fprintln(os.Stderr, "===========")
	fmt.Fprintln(os.Stderr, " KanaServe ")
	fmt.Fprintln(os.Stderr, "===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("dictionary: ( %s )", dictPath)
	log.Info("loaded", "dictionaries", stats["dictionaries"], "scorers", stats["scorers"])
	log.Info("status: ready")
	fmt.Fprintln(os.Stderr, "===========")
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to exit")
}

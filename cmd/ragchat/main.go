package main

import (
	"context"
	"fmt"
	"os"

	"ragchat/internal/config"
	"ragchat/internal/events"
	"ragchat/internal/history"
	"ragchat/internal/logger"
	"ragchat/internal/tui"
)

var log = logger.Named("cli")

func main() {
	logger.Configure()

	root, rest, err := parseRootArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("parse args: %v", err)
	}
	if len(rest) > 0 {
		switch rest[0] {
		case "ask":
			askMain(root, rest[1:])
			return
		case "threads":
			threadsMain(root, rest[1:])
			return
		case "export":
			exportMain(root, rest[1:])
			return
		case "ping":
			pingMain(root, rest[1:])
			return
		case "config":
			configMain(root, rest[1:])
			return
		case "help":
			printUsage()
			return
		}
	}

	runInteractive(root, rest)
}

func printUsage() {
	fmt.Println(`usage: ragchat [-c key=value] [--config path] [command]

commands:
  (none)      interactive chat
  ask         send one question and print the answer
  threads     list, rename or delete conversations
  export      write a conversation as txt or json
  ping        check that the endpoint is reachable
  config      show or set config values`)
}

func runInteractive(root rootArgs, args []string) {
	fs, cli := newInteractiveFlagSet("ragchat")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse args: %v", err)
	}

	rt, err := loadApp(root, cli.overrides)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if logFile, _, err := logger.SetupFile(rt.cfg.LogPath); err != nil {
		log.Warnf("failed to initialize log file: %v", err)
	} else {
		defer logFile.Close()
	}
	if cli.noRAG {
		rt.cfg.UseRAG = false
	}

	manager := events.NewManager(events.ManagerConfig{
		SessionID: rt.record.SessionID,
		SQLogPath: events.DefaultSQLogPath,
		EQLogPath: events.DefaultEQLogPath,
	}, nil)
	ctrl, err := rt.controller(manager.Listener())
	if err != nil {
		log.Fatalf("%v", err)
	}
	manager.SetReconciler(ctrl)
	manager.Start(context.Background())
	defer manager.Close()

	initial := cli.thread
	if initial == "" && !cli.fresh {
		initial = rt.record.LastThreadID
	}
	res, err := tui.Run(tui.Options{
		Controller:      ctrl,
		Manager:         manager,
		BaseURL:         rt.client.BaseURL(),
		InitialThread:   initial,
		ExportDir:       cli.exportDir,
		OnThreadChanged: rt.rememberThread,
		Prompts:         history.New(config.Dir()),
	}, cli.inline)
	if err != nil {
		log.Fatalf("tui: %v", err)
	}
	rt.rememberThread(res.LastThread)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"ragchat/internal/config"
	"ragchat/internal/transport"
)

func pingMain(root rootArgs, args []string) {
	if err := runPing(root, args, os.Stdout); err != nil {
		log.Fatalf("ping failed: %v", err)
	}
}

// runPing 检查服务端：先 TCP 拨号，未指定 --tcp-only 时再请求 GET /chats。
func runPing(root rootArgs, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var baseURLOverride string
	var timeoutSeconds int
	var tcpOnly bool
	fs.StringVar(&baseURLOverride, "url", "", "Override endpoint URL (e.g. http://127.0.0.1:5000)")
	fs.IntVar(&timeoutSeconds, "timeout", 10, "Timeout seconds")
	fs.BoolVar(&tcpOnly, "tcp-only", false, "Only check that the host accepts connections")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(root.cfgPath)
	if err != nil {
		return err
	}
	cfg = config.ApplyKVOverrides(cfg, prependOverrides(root.overrides, nil))
	baseURL := strings.TrimSpace(baseURLOverride)
	if baseURL == "" {
		baseURL = cfg.URL
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	start := time.Now()
	if err := transport.CheckReachable(ctx, baseURL); err != nil {
		return err
	}
	if tcpOnly {
		_, _ = fmt.Fprintf(out, "ok: %s reachable in %s\n", baseURL, time.Since(start).Round(time.Millisecond))
		return nil
	}

	client, err := transport.New(transport.Options{BaseURL: baseURL, Timeout: time.Duration(timeoutSeconds) * time.Second})
	if err != nil {
		return err
	}
	threads, err := client.ListThreads(ctx, cfg.UserID)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "ok: %s answered in %s (%d conversations for %s)\n",
		client.BaseURL(), time.Since(start).Round(time.Millisecond), len(threads), cfg.UserID)
	return nil
}

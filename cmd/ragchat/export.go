package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"ragchat/internal/export"
)

func exportMain(root rootArgs, args []string) {
	if err := runExport(root, args, os.Stdout); err != nil {
		log.Fatalf("export failed: %v", err)
	}
}

// runExport 将一个会话写到 --out（目录或文件路径），未指定时写到 stdout。
func runExport(root rootArgs, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var thread string
	var formatName string
	var outPath string
	var overrides stringSlice
	fs.StringVar(&thread, "thread", "", "Conversation to export (default: the last one used)")
	fs.StringVar(&formatName, "format", "txt", "Output format: txt or json")
	fs.StringVar(&outPath, "out", "", "Output directory or file (default: stdout)")
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if thread == "" && fs.NArg() > 0 {
		thread = fs.Arg(0)
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}

	rt, err := loadApp(root, overrides)
	if err != nil {
		return err
	}
	if thread == "" {
		thread = rt.record.LastThreadID
	}
	if thread == "" {
		return errors.New("no conversation given and none used before; pass --thread")
	}
	ctrl, err := rt.controller(nil)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := ctrl.ListThreads(ctx); err != nil {
		return err
	}
	if err := ctrl.SelectThread(ctx, thread); err != nil {
		return fmt.Errorf("open thread %s: %w", thread, err)
	}

	conv := export.Conversation{ThreadID: thread, Messages: ctrl.Messages()}
	for _, t := range ctrl.Threads() {
		if t.ID == thread {
			conv.Title = t.Title
		}
	}
	now := time.Now()
	if outPath == "" {
		return export.Write(stdout, format, conv, now)
	}
	if info, err := os.Stat(outPath); err == nil && info.IsDir() {
		outPath = filepath.Join(outPath, export.FileName(conv.Title, format, now))
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := export.Write(f, format, conv, now); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "exported to %s\n", outPath)
	return nil
}

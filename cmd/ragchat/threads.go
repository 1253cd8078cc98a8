package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"ragchat/internal/chat"
)

func threadsMain(root rootArgs, args []string) {
	if err := runThreads(root, args, os.Stdout); err != nil {
		log.Fatalf("threads failed: %v", err)
	}
}

// runThreads 处理 "threads [list|search|rename|delete]"。
func runThreads(root rootArgs, args []string, out io.Writer) error {
	action := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("threads "+action, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var overrides stringSlice
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()

	rt, err := loadApp(root, overrides)
	if err != nil {
		return err
	}
	ctrl, err := rt.controller(nil)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := ctrl.ListThreads(ctx); err != nil {
		return err
	}

	switch action {
	case "list", "ls":
		return writeThreads(out, ctrl.Threads(), rt.record.LastThreadID)
	case "search":
		if len(rest) == 0 {
			return errors.New("usage: ragchat threads search <text>")
		}
		return writeThreads(out, ctrl.SearchThreads(strings.Join(rest, " ")), rt.record.LastThreadID)
	case "rename":
		if len(rest) < 2 {
			return errors.New("usage: ragchat threads rename <thread-id> <title>")
		}
		if err := ctrl.RenameThread(ctx, rest[0], strings.Join(rest[1:], " ")); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "renamed %s\n", rest[0])
		return nil
	case "delete", "rm":
		if len(rest) != 1 {
			return errors.New("usage: ragchat threads delete <thread-id>")
		}
		if err := ctrl.DeleteThread(ctx, rest[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "deleted %s\n", rest[0])
		return nil
	default:
		return fmt.Errorf("unknown threads action %q (want list, search, rename or delete)", action)
	}
}

func writeThreads(out io.Writer, threads []chat.ThreadSummary, last string) error {
	if len(threads) == 0 {
		_, err := fmt.Fprintln(out, "no conversations")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, t := range threads {
		marker := " "
		if t.ID == last {
			marker = "*"
		}
		created := ""
		if !t.CreatedAt.IsZero() {
			created = t.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(tw, "%s %s\t%s\t%s\n", marker, t.ID, created, t.Title)
	}
	return tw.Flush()
}

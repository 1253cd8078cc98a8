package main

import "flag"

// interactiveArgs 保存交互模式入口的参数。
type interactiveArgs struct {
	thread    string
	fresh     bool
	inline    bool
	noRAG     bool
	exportDir string
	overrides stringSlice
}

func newInteractiveFlagSet(name string) (*flag.FlagSet, *interactiveArgs) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	args := &interactiveArgs{}

	fs.StringVar(&args.thread, "thread", "", "Conversation to open (default: the last one used)")
	fs.StringVar(&args.thread, "t", "", "Alias for --thread")
	fs.BoolVar(&args.fresh, "new", false, "Start without reopening the last conversation")
	fs.BoolVar(&args.inline, "inline", false, "Disable alt screen to allow mouse selection/copy")
	fs.BoolVar(&args.noRAG, "no-rag", false, "Disable document retrieval for this run")
	fs.StringVar(&args.exportDir, "export-dir", ".", "Directory for /export files")
	fs.Var(&args.overrides, "c", "Override config value key=value (repeatable)")

	return fs, args
}

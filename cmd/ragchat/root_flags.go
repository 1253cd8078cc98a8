package main

import (
	"flag"
	"fmt"
)

type rootArgs struct {
	overrides []string
	cfgPath   string
}

func parseRootArgs(args []string) (rootArgs, []string, error) {
	fs := flag.NewFlagSet("ragchat", flag.ContinueOnError)
	var overrides stringSlice
	var cfgPath string
	var user string
	var noRAG bool
	fs.Var(&overrides, "c", "Override config value key=value (repeatable, applied before subcommand overrides)")
	fs.StringVar(&cfgPath, "config", "", "Path to config file (default ~/.ragchat/config.toml)")
	fs.StringVar(&user, "user", "", "User id. Equivalent to -c user_id=<id>")
	fs.BoolVar(&noRAG, "no-rag", false, "Disable document retrieval. Equivalent to -c use_rag=false")
	if err := fs.Parse(args); err != nil {
		return rootArgs{}, nil, err
	}

	all := append([]string{}, overrides...)
	if user != "" {
		all = append(all, fmt.Sprintf("user_id=%s", user))
	}
	if noRAG {
		all = append(all, "use_rag=false")
	}
	return rootArgs{overrides: all, cfgPath: cfgPath}, fs.Args(), nil
}

func prependOverrides(root []string, overrides []string) []string {
	merged := append([]string{}, root...)
	return append(merged, overrides...)
}

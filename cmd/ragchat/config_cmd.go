package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"ragchat/internal/config"

	"github.com/pelletier/go-toml/v2"
)

func configMain(root rootArgs, args []string) {
	if err := runConfig(root, args, os.Stdout); err != nil {
		log.Fatalf("config failed: %v", err)
	}
}

// runConfig 处理 "config show"（生效配置）与 "config set key=value..."。
func runConfig(root rootArgs, args []string, out io.Writer) error {
	action := "show"
	if len(args) > 0 {
		action = args[0]
		args = args[1:]
	}
	switch action {
	case "show":
		cfg, err := config.Load(root.cfgPath)
		if err != nil {
			return err
		}
		cfg = config.ApplyKVOverrides(cfg, root.overrides)
		data, err := toml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "# %s\n%s", cfg.Source, data)
		return nil
	case "set":
		if len(args) == 0 {
			return errors.New("usage: ragchat config set key=value [key=value...]")
		}
		cfg, err := config.ReadFile(root.cfgPath)
		if err != nil {
			return err
		}
		cfg = config.ApplyKVOverrides(cfg, args)
		if err := config.Save(cfg.Source, cfg); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "saved %s\n", cfg.Source)
		return nil
	default:
		return fmt.Errorf("unknown config action %q (want show or set)", action)
	}
}

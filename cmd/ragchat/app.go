package main

import (
	"fmt"

	"ragchat/internal/chat"
	"ragchat/internal/config"
	"ragchat/internal/logger"
	"ragchat/internal/session"
	"ragchat/internal/transport"
)

// app 是各子命令共享的运行状态。
type app struct {
	cfg    config.Config
	store  *session.Store
	record session.Record
	client *transport.Client
}

func loadApp(root rootArgs, overrides []string) (*app, error) {
	cfg, err := config.Load(root.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg = config.ApplyKVOverrides(cfg, prependOverrides(root.overrides, overrides))
	if cfg.LogLevel != "" {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			log.Warnf("ignoring log_level: %v", err)
		}
	}

	store := session.New(config.Dir())
	record, err := store.LoadOrCreate()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	client, err := transport.New(transport.Options{
		BaseURL: cfg.URL,
		Timeout: cfg.Timeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("init client: %w", err)
	}
	log.WithField("url", client.BaseURL()).WithField("session_id", record.SessionID).Debug("runtime ready")
	return &app{cfg: cfg, store: store, record: record, client: client}, nil
}

func (r *app) controller(listener chat.Listener) (*chat.Controller, error) {
	return chat.New(chat.Options{
		Backend: r.client,
		Session: chat.ClientSession{
			SessionID: r.record.SessionID,
			UserID:    r.cfg.UserID,
			UseRAG:    r.cfg.UseRAG,
		},
		Listener: listener,
	})
}

// rememberThread 保存下次恢复的会话；新对话状态不记录。
func (r *app) rememberThread(threadID string) {
	if threadID == "" || threadID == r.record.LastThreadID {
		return
	}
	if err := r.store.SaveLastThread(threadID); err != nil {
		log.Warnf("failed to save last thread: %v", err)
		return
	}
	r.record.LastThreadID = threadID
}

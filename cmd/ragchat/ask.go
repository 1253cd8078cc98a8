package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ragchat/internal/chat"
)

type askResult struct {
	ThreadID string       `json:"thread_id,omitempty"`
	Answer   string       `json:"answer"`
	Context  []askContext `json:"context,omitempty"`
	Error    string       `json:"error,omitempty"`
	Files    []string     `json:"files,omitempty"`
}

type askContext struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

func askMain(root rootArgs, args []string) {
	if err := runAsk(root, args, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("ask failed: %v", err)
	}
}

// runAsk 发送一个问题（可延续已有会话）并输出回答。
func runAsk(root rootArgs, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var thread string
	var last bool
	var files csvSlice
	var audio string
	var asJSON bool
	var overrides stringSlice
	fs.StringVar(&thread, "thread", "", "Continue this conversation")
	fs.BoolVar(&last, "last", false, "Continue the last conversation used")
	fs.Var(&files, "file", "Attach a file (comma separated or repeatable)")
	fs.Var(&files, "f", "Alias for --file")
	fs.StringVar(&audio, "audio", "", "Send an audio recording instead of text")
	fs.BoolVar(&asJSON, "json", false, "Print the result as JSON")
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "-" || (question == "" && len(files) == 0 && audio == "") {
		data, err := io.ReadAll(bufio.NewReader(in))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		question = strings.TrimSpace(string(data))
	}

	rt, err := loadApp(root, overrides)
	if err != nil {
		return err
	}
	ctrl, err := rt.controller(nil)
	if err != nil {
		return err
	}
	ctx := context.Background()

	if last && thread == "" {
		thread = rt.record.LastThreadID
	}
	if thread != "" {
		if err := ctrl.ListThreads(ctx); err != nil {
			return err
		}
		if err := ctrl.SelectThread(ctx, thread); err != nil {
			return fmt.Errorf("open thread %s: %w", thread, err)
		}
	}

	var res chat.Result
	if audio != "" {
		data, err := os.ReadFile(audio)
		if err != nil {
			return err
		}
		res, err = ctrl.SendAudio(ctx, chat.AudioClip{Data: data, MIMEType: chat.DetectType(audio, data)})
		if err != nil && !isExchangeError(err) {
			return err
		}
	} else {
		refs, err := readAttachments(files)
		if err != nil {
			return err
		}
		res, err = ctrl.Submit(ctx, chat.Input{Text: question, Files: refs})
		if err != nil && !isExchangeError(err) {
			for _, f := range refs {
				f.Release()
			}
			return err
		}
	}

	rt.rememberThread(ctrl.ActiveThread())
	result := buildAskResult(ctrl.Messages(), res)
	result.ThreadID = ctrl.ActiveThread()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		writeAskText(out, result)
	}
	if result.Error != "" {
		return errors.New(result.Error)
	}
	return nil
}

// isExchangeError 判断错误是否已作为消息写入时间线。
func isExchangeError(err error) bool {
	var terr *chat.TransportError
	var serr *chat.ServerReportedError
	return errors.As(err, &terr) || errors.As(err, &serr)
}

func readAttachments(paths []string) ([]chat.FileRef, error) {
	refs := make([]chat.FileRef, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			for _, f := range refs {
				f.Release()
			}
			return nil, err
		}
		name := filepath.Base(p)
		refs = append(refs, chat.NewFileRef(name, chat.DetectType(name, data), data))
	}
	return refs, nil
}

func buildAskResult(msgs []chat.Message, res chat.Result) askResult {
	var result askResult
	for _, m := range msgs {
		if m.Role == chat.RoleUser {
			result.Files = result.Files[:0]
			for _, f := range m.Attachments {
				result.Files = append(result.Files, f.Name)
			}
		}
	}
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		if last.Role == chat.RoleAssistant {
			result.Answer = last.Text
			for _, c := range last.Context {
				result.Context = append(result.Context, askContext{Source: c.Source, Content: c.Content})
			}
		}
	}
	if res.Status == chat.ResultServerError || res.Status == chat.ResultTransportError {
		result.Error = result.Answer
		result.Answer = ""
		result.Context = nil
	}
	return result
}

func writeAskText(out io.Writer, r askResult) {
	if r.Error != "" {
		return
	}
	_, _ = fmt.Fprintln(out, r.Answer)
	if len(r.Context) > 0 {
		_, _ = fmt.Fprintln(out, "\nSources:")
		for _, c := range r.Context {
			_, _ = fmt.Fprintf(out, "  • %s\n", c.Source)
		}
	}
	if r.ThreadID != "" {
		_, _ = fmt.Fprintf(out, "\n[thread %s]\n", r.ThreadID)
	}
}

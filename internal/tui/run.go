package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Result 返回 TUI 运行后的必要信息。
type Result struct {
	LastThread string
}

// Run 封装 Bubble Tea 入口，返回最终的 UI 结果。
func Run(opts Options, inline bool) (Result, error) {
	programOptions := []tea.ProgramOption{}
	if !inline {
		programOptions = append(programOptions, tea.WithAltScreen())
	}
	program := tea.NewProgram(New(opts), programOptions...)
	m, err := program.Run()
	if err != nil {
		return Result{}, err
	}
	tuiModel, ok := m.(*Model)
	if !ok {
		return Result{}, errors.New("unexpected tui model")
	}
	return Result{LastThread: tuiModel.snapshot.ActiveThread}, nil
}

package slash

import "strings"

// Command 表示内置斜杠命令的标识符。
type Command string

const (
	CommandNew     Command = "new"
	CommandThreads Command = "threads"
	CommandSearch  Command = "search"
	CommandRename  Command = "rename"
	CommandDelete  Command = "delete"
	CommandAttach  Command = "attach"
	CommandDetach  Command = "detach"
	CommandAudio   Command = "audio"
	CommandEdit    Command = "edit"
	CommandRetry   Command = "retry"
	CommandExport  Command = "export"
	CommandCopy    Command = "copy"
	CommandRAG     Command = "rag"
	CommandHelp    Command = "help"
	CommandQuit    Command = "quit"
	CommandExit    Command = "exit"
)

// Item 代表弹窗中的一行条目。
type Item struct {
	Command     Command
	Usage       string
	Description string
}

// Token 返回无前导斜杠的匹配键。
func (i Item) Token() string {
	return string(i.Command)
}

// DisplayName 返回带前缀斜杠的展示名称。
func (i Item) DisplayName() string {
	token := i.Token()
	if token == "" {
		return ""
	}
	if strings.HasPrefix(token, "/") {
		return token
	}
	return "/" + token
}

// Help 返回 "/cmd <args>  描述" 形式的帮助行。
func (i Item) Help() string {
	name := i.DisplayName()
	if i.Usage != "" {
		name += " " + i.Usage
	}
	return name + "  " + i.Description
}

func builtinItems() []Item {
	return []Item{
		{Command: CommandNew, Description: "start a new conversation"},
		{Command: CommandThreads, Description: "pick a conversation"},
		{Command: CommandSearch, Usage: "<text>", Description: "search conversations"},
		{Command: CommandRename, Usage: "<title>", Description: "rename the active conversation"},
		{Command: CommandDelete, Description: "delete the active conversation"},
		{Command: CommandAttach, Usage: "<file>", Description: "attach a file to the next message"},
		{Command: CommandDetach, Description: "drop pending attachments"},
		{Command: CommandAudio, Usage: "<file>", Description: "send a recorded audio message"},
		{Command: CommandEdit, Usage: "<text>", Description: "edit your last message and resend"},
		{Command: CommandRetry, Description: "retry the last failed message"},
		{Command: CommandExport, Usage: "[txt|json]", Description: "export the conversation"},
		{Command: CommandCopy, Description: "copy the last answer"},
		{Command: CommandRAG, Usage: "[on|off]", Description: "toggle document retrieval"},
		{Command: CommandHelp, Description: "show commands"},
		{Command: CommandQuit, Description: "quit"},
		{Command: CommandExit, Description: "quit"},
	}
}

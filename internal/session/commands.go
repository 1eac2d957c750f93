package session

import (
	"fmt"
	"strings"
)

// Command is an operator command, named without the leading slash.
type Command string

const (
	CmdStart      Command = "start"
	CmdHelp       Command = "help"
	CmdCleanCache Command = "clean_cache"
	CmdCleanDB    Command = "clean_db"
	CmdDisconnect Command = "disconnect"
	CmdImport     Command = "import"
	CmdInvite     Command = "invite"
	CmdListChats  Command = "listchats"
	CmdSignIn     Command = "signin"
	CmdSendCode   Command = "sendcode"
	CmdSignOut    Command = "signout"
	CmdStat       Command = "stat"
	CmdToken      Command = "token"
)

// CommandInfo describes a command and the names it answers to.
type CommandInfo struct {
	Command     Command
	Aliases     []string
	Description string
}

// Names returns the canonical name followed by the aliases.
func (c CommandInfo) Names() []string {
	return append([]string{string(c.Command)}, c.Aliases...)
}

// Commands lists every operator command in help order.
var Commands = []CommandInfo{
	{Command: CmdHelp, Description: "shows the command list"},
	{Command: CmdCleanDB, Description: "deletes every stored user"},
	{Command: CmdDisconnect, Description: "closes the Telegram client connection"},
	{Command: CmdSignOut, Aliases: []string{"sign_out"}, Description: "logs the Telegram client out"},
	{Command: CmdCleanCache, Description: "removes all statistics files"},
	{Command: CmdImport, Description: "imports the members of a group"},
	{Command: CmdInvite, Description: "invites stored users into a channel"},
	{Command: CmdListChats, Aliases: []string{"list_chats"}, Description: "shows the joined chats and their ids"},
	{Command: CmdSendCode, Aliases: []string{"send_code"}, Description: "asks Telegram for a login code"},
	{Command: CmdSignIn, Description: "logs in with the Telegram login code"},
	{Command: CmdStat, Description: "downloads a statistics file up to a date"},
	{Command: CmdToken, Description: "sets the bot that delivers statistics files"},
	{Command: CmdStart, Description: "shows the session status"},
}

func commandList() string {
	var b strings.Builder
	b.WriteString("Click a command:\n")
	for _, c := range Commands {
		fmt.Fprintf(&b, "/%s - %s\n", c.Command, c.Description)
	}
	return b.String()
}

// LookupCommand resolves a command name or alias, ignoring case.
func LookupCommand(name string) (Command, bool) {
	name = strings.ToLower(name)
	for _, c := range Commands {
		for _, n := range c.Names() {
			if n == name {
				return c.Command, true
			}
		}
	}
	return "", false
}

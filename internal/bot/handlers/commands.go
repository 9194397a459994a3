package handlers

import (
	"errors"
	"fmt"
	"strings"
)

// Command is a menu action carried in inline keyboard callback data.
type Command string

const (
	CmdAddGroup          Command = "add_group"
	CmdActiveGroups      Command = "active_groups"
	CmdStats             Command = "stats"
	CmdCheckSubscription Command = "check_subscription"
	CmdLanguageMenu      Command = "language"
	CmdSetLanguage       Command = "set_lang"
	CmdSettings          Command = "settings"
	CmdBack              Command = "back"
	CmdChannelYes        Command = "channel_yes"
	CmdChannelNo         Command = "channel_no"
)

// AllCommands lists every callback command the bot understands.
var AllCommands = []Command{
	CmdAddGroup,
	CmdActiveGroups,
	CmdStats,
	CmdCheckSubscription,
	CmdLanguageMenu,
	CmdSetLanguage,
	CmdSettings,
	CmdBack,
	CmdChannelYes,
	CmdChannelNo,
}

// ErrUnknownCommand is returned by ParseCallback for unrecognized data.
var ErrUnknownCommand = errors.New("unknown callback command")

const argSeparator = ":"

// Data encodes the command and an optional argument as callback data.
func (c Command) Data(arg string) string {
	if arg == "" {
		return string(c)
	}
	return string(c) + argSeparator + arg
}

// ParseCallback decodes callback data produced by Command.Data.
func ParseCallback(data string) (Command, string, error) {
	name, arg, _ := strings.Cut(data, argSeparator)
	for _, c := range AllCommands {
		if string(c) == name {
			return c, arg, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnknownCommand, data)
}

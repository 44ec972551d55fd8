package main

import (
	"strings"
)

// commandKind is one interactive console action.
type commandKind int

const (
	cmdToggle commandKind = iota
	cmdLanguage
	cmdListLanguages
	cmdContinuous
	cmdClear
	cmdSay
	cmdStopSpeaking
	cmdStatus
	cmdHelp
	cmdQuit
	cmdUnknown
)

type command struct {
	kind commandKind
	arg  string
	on   bool
}

const helpText = `Commands:
  <Enter>          start or stop listening
  lang [tag]       switch recognition language, or list languages
  cont on|off      continuous mode
  clear            discard the transcript
  say <text>       speak text
  hush             stop speaking
  status           show the session
  q                quit`

// parseCommand reads one console line.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdToggle}
	}
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "lang", "language":
		if arg == "" {
			return command{kind: cmdListLanguages}
		}
		return command{kind: cmdLanguage, arg: arg}
	case "cont", "continuous":
		switch strings.ToLower(arg) {
		case "on", "true", "1":
			return command{kind: cmdContinuous, on: true}
		case "off", "false", "0":
			return command{kind: cmdContinuous, on: false}
		}
		return command{kind: cmdUnknown, arg: line}
	case "clear":
		return command{kind: cmdClear}
	case "say":
		if arg == "" {
			return command{kind: cmdUnknown, arg: line}
		}
		return command{kind: cmdSay, arg: arg}
	case "hush", "shh":
		return command{kind: cmdStopSpeaking}
	case "status":
		return command{kind: cmdStatus}
	case "help", "?":
		return command{kind: cmdHelp}
	case "q", "quit", "exit":
		return command{kind: cmdQuit}
	}
	return command{kind: cmdUnknown, arg: line}
}

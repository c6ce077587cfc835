package main

import (
	"regexp"
	"strings"
)

// Player names may contain any letter or digit, not only ASCII.
var (
	chatPattern  = regexp.MustCompile(`\[CHAT\] ([\p{L}\p{M}\p{N}_]+|<server>): (.+)`)
	joinPattern  = regexp.MustCompile(`\[JOIN\] ([\p{L}\p{M}\p{N}_]+) joined`)
	leavePattern = regexp.MustCompile(`\[LEAVE\] ([\p{L}\p{M}\p{N}_]+) left`)
)

// serverUser is the author of chat lines written through RCON, including
// the ones this bridge relays from the chat platform.
const serverUser = "<server>"

type recordKind int

const (
	recordChat recordKind = iota + 1
	recordJoin
	recordLeave
)

func (k recordKind) String() string {
	switch k {
	case recordChat:
		return "chat"
	case recordJoin:
		return "join"
	case recordLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// logRecord is a recognized console log line.
type logRecord struct {
	Kind recordKind
	User string
	Msg  string // chat only
}

// parseLogLine recognizes chat, join and leave lines of the Factorio console
// log. Anything else, including server chat, yields ok == false.
func parseLogLine(line string) (rec logRecord, ok bool) {
	switch {
	case strings.Contains(line, "[CHAT]"):
		m := chatPattern.FindStringSubmatch(line)
		if m == nil || m[1] == serverUser {
			return logRecord{}, false
		}
		return logRecord{Kind: recordChat, User: m[1], Msg: m[2]}, true
	case strings.Contains(line, "[JOIN]"):
		m := joinPattern.FindStringSubmatch(line)
		if m == nil {
			return logRecord{}, false
		}
		return logRecord{Kind: recordJoin, User: m[1]}, true
	case strings.Contains(line, "[LEAVE]"):
		m := leavePattern.FindStringSubmatch(line)
		if m == nil {
			return logRecord{}, false
		}
		return logRecord{Kind: recordLeave, User: m[1]}, true
	}
	return logRecord{}, false
}

// toEvent renders a record as the chat message announcing it.
func (r logRecord) toEvent() GameMessage {
	switch r.Kind {
	case recordJoin:
		return GameMessage{Text: "😊" + r.User + " joined", Silent: true}
	case recordLeave:
		return GameMessage{Text: "👋" + r.User + " left", Silent: true}
	default:
		return GameMessage{Text: "💬" + r.User + ": " + r.Msg}
	}
}

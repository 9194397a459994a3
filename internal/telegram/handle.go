package telegram

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	mentionPattern = regexp.MustCompile(`@(\w+)`)
	linkPattern    = regexp.MustCompile(`(?i)(?:t\.me/|telegram\.me/)(\w+)`)
)

// Path segments of t.me links that are not public usernames.
var reservedLinkPaths = map[string]bool{
	"joinchat":    true,
	"c":           true,
	"addstickers": true,
	"share":       true,
}

// ParseHandle extracts a public chat handle from free text. It accepts
// "@name" mentions and t.me or telegram.me links, mentions first, and
// returns the normalized "@name" form in lower case.
func ParseHandle(text string) (string, bool) {
	if m := mentionPattern.FindStringSubmatch(text); m != nil {
		return NormalizeHandle(m[1]), true
	}
	if m := linkPattern.FindStringSubmatch(text); m != nil && !reservedLinkPaths[strings.ToLower(m[1])] {
		return NormalizeHandle(m[1]), true
	}
	return "", false
}

// NormalizeHandle returns "@" followed by the lower-cased username.
func NormalizeHandle(username string) string {
	return "@" + strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// GroupKey returns the store key of a group: its normalized handle when it
// has a public username, otherwise its decimal chat id.
func GroupKey(username string, chatID int64) string {
	if strings.TrimSpace(username) != "" {
		return NormalizeHandle(username)
	}
	return strconv.FormatInt(chatID, 10)
}

// chatRef converts a store key or handle into a Bot API chat_id value:
// numeric strings become int64, handles stay strings.
func chatRef(ref string) any {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id
	}
	return ref
}

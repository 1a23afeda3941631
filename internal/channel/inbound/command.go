package inbound

import (
	"strings"

	"github.com/memohai/anontalks/internal/channel"
	"github.com/memohai/anontalks/internal/matchmaker"
)

var commandKinds = map[string]matchmaker.EventKind{
	"start":  matchmaker.EventRegister,
	"search": matchmaker.EventRequestPairing,
	"next":   matchmaker.EventRequestPairing,
	"cancel": matchmaker.EventCancel,
	"end":    matchmaker.EventEnd,
	"stop":   matchmaker.EventEnd,
}

// ParseEvent maps an inbound message to a matchmaker event. Known commands
// ("/search", "/end@some_bot", ...) become their event; anything else is a
// message, kept verbatim.
func ParseEvent(msg channel.InboundMessage) matchmaker.Event {
	ev := matchmaker.Event{
		ExternalID: strings.TrimSpace(msg.Sender.ExternalID),
		Address:    strings.TrimSpace(msg.ReplyTarget),
		Kind:       matchmaker.EventMessage,
		Text:       msg.Text,
	}
	if kind, ok := parseCommand(msg.Text); ok {
		ev.Kind = kind
		ev.Text = ""
	}
	return ev
}

func parseCommand(text string) (matchmaker.EventKind, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	kind, ok := commandKinds[strings.ToLower(name)]
	return kind, ok
}

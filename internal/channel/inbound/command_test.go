package inbound

import (
	"testing"

	"github.com/memohai/anontalks/internal/channel"
	"github.com/memohai/anontalks/internal/matchmaker"
)

func TestParseEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		wantKind matchmaker.EventKind
		wantText string
	}{
		{text: "/start", wantKind: matchmaker.EventRegister},
		{text: "/search", wantKind: matchmaker.EventRequestPairing},
		{text: "/next", wantKind: matchmaker.EventRequestPairing},
		{text: "/SEARCH@anon_bot", wantKind: matchmaker.EventRequestPairing},
		{text: "  /cancel  ", wantKind: matchmaker.EventCancel},
		{text: "/end", wantKind: matchmaker.EventEnd},
		{text: "/stop now", wantKind: matchmaker.EventEnd},
		{text: "hello /end", wantKind: matchmaker.EventMessage, wantText: "hello /end"},
		{text: "/unknown", wantKind: matchmaker.EventMessage, wantText: "/unknown"},
		{text: " spaced out ", wantKind: matchmaker.EventMessage, wantText: " spaced out "},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ev := ParseEvent(channel.InboundMessage{
				Sender:      channel.Identity{ExternalID: " 7 "},
				ReplyTarget: "70",
				Text:        tt.text,
			})
			if ev.Kind != tt.wantKind || ev.Text != tt.wantText {
				t.Fatalf("ParseEvent(%q) = %s/%q, want %s/%q", tt.text, ev.Kind, ev.Text, tt.wantKind, tt.wantText)
			}
			if ev.ExternalID != "7" || ev.Address != "70" {
				t.Fatalf("unexpected identity: %+v", ev)
			}
		})
	}
}

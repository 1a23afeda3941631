package channel

import (
	"strings"
	"time"
)

type ChannelType string

func (c ChannelType) String() string {
	return string(c)
}

// Identity is the transport-level identity of a sender.
type Identity struct {
	ExternalID  string
	DisplayName string
}

// InboundMessage is one text message received from a transport.
type InboundMessage struct {
	Channel     ChannelType
	MessageID   string
	Sender      Identity
	ReplyTarget string
	Text        string
	ReceivedAt  time.Time
}

// Valid reports whether the message carries enough to be processed.
func (m InboundMessage) Valid() bool {
	return strings.TrimSpace(m.Sender.ExternalID) != "" && strings.TrimSpace(m.ReplyTarget) != ""
}

// OutboundMessage is a text to deliver to a transport address.
type OutboundMessage struct {
	Target string `json:"target"`
	Text   string `json:"text"`
}

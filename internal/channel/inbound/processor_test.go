package inbound

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/memohai/anontalks/internal/analytics"
	"github.com/memohai/anontalks/internal/channel"
	"github.com/memohai/anontalks/internal/logger"
	"github.com/memohai/anontalks/internal/matchmaker"
	"github.com/memohai/anontalks/internal/mocks"
	"github.com/memohai/anontalks/internal/storage"
)

type fakeEvents struct {
	mu      sync.Mutex
	events  []matchmaker.Event
	replies func(call int, ev matchmaker.Event) ([]matchmaker.Notification, error)
}

func (f *fakeEvents) Handle(_ context.Context, ev matchmaker.Event) ([]matchmaker.Notification, error) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	call := len(f.events)
	f.mu.Unlock()
	return f.replies(call, ev)
}

type fakeTracker struct {
	mu       sync.Mutex
	messages []analytics.Message
	text     bool
}

func (f *fakeTracker) Track(msg analytics.Message) {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
}

func (f *fakeTracker) IncludeText() bool { return f.text }

func inbound(text string) channel.InboundMessage {
	return channel.InboundMessage{
		Channel:     "telegram",
		Sender:      channel.Identity{ExternalID: "7"},
		ReplyTarget: "70",
		Text:        text,
		ReceivedAt:  time.Now(),
	}
}

func newProcessor(events EventHandler, tracker Tracker) *Processor {
	return NewProcessor(logger.Discard(), events, tracker, Options{RetryInterval: time.Millisecond})
}

func TestHandleInboundDeliversNotifications(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	events := &fakeEvents{replies: func(int, matchmaker.Event) ([]matchmaker.Notification, error) {
		return []matchmaker.Notification{{Address: "70", Text: "paired"}, {Address: "80", Text: "paired"}}, nil
	}}

	gomock.InOrder(
		sender.EXPECT().Send(gomock.Any(), channel.OutboundMessage{Target: "70", Text: "paired"}).Return(nil),
		sender.EXPECT().Send(gomock.Any(), channel.OutboundMessage{Target: "80", Text: "paired"}).Return(nil),
	)

	err := newProcessor(events, nil).HandleInbound(context.Background(), inbound("/search"), sender)
	require.NoError(t, err)
	require.Len(t, events.events, 1)
	assert.Equal(t, matchmaker.Event{ExternalID: "7", Address: "70", Kind: matchmaker.EventRequestPairing}, events.events[0])
}

func TestHandleInboundPromptsUnregistered(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	events := &fakeEvents{replies: func(int, matchmaker.Event) ([]matchmaker.Notification, error) {
		return nil, matchmaker.ErrNotRegistered
	}}

	sender.EXPECT().Send(gomock.Any(), channel.OutboundMessage{Target: "70", Text: DefaultNotRegisteredText}).Return(nil)

	require.NoError(t, newProcessor(events, nil).HandleInbound(context.Background(), inbound("hi"), sender))
}

func TestHandleInboundRetriesUnavailableStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	events := &fakeEvents{replies: func(call int, _ matchmaker.Event) ([]matchmaker.Notification, error) {
		if call < 3 {
			return nil, fmt.Errorf("claim: %w", storage.ErrUnavailable)
		}
		return []matchmaker.Notification{{Address: "70", Text: "searching"}}, nil
	}}

	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	require.NoError(t, newProcessor(events, nil).HandleInbound(context.Background(), inbound("/search"), sender))
	assert.Len(t, events.events, 3)
}

func TestHandleInboundGivesUpAfterRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	events := &fakeEvents{replies: func(int, matchmaker.Event) ([]matchmaker.Notification, error) {
		return nil, storage.ErrUnavailable
	}}

	err := newProcessor(events, nil).HandleInbound(context.Background(), inbound("/search"), sender)
	require.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Len(t, events.events, DefaultRetryTries)
}

func TestHandleInboundDoesNotRetryOtherErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	boom := errors.New("boom")
	events := &fakeEvents{replies: func(int, matchmaker.Event) ([]matchmaker.Notification, error) {
		return nil, boom
	}}

	err := newProcessor(events, nil).HandleInbound(context.Background(), inbound("/end"), sender)
	require.ErrorIs(t, err, boom)
	assert.Len(t, events.events, 1)
}

func TestHandleInboundJoinsDeliveryErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	events := &fakeEvents{replies: func(int, matchmaker.Event) ([]matchmaker.Notification, error) {
		return []matchmaker.Notification{{Address: "70", Text: "ended"}, {Address: "80", Text: "ended"}}, nil
	}}
	blocked := errors.New("bot was blocked by the user")

	sender.EXPECT().Send(gomock.Any(), channel.OutboundMessage{Target: "70", Text: "ended"}).Return(blocked)
	sender.EXPECT().Send(gomock.Any(), channel.OutboundMessage{Target: "80", Text: "ended"}).Return(nil)

	err := newProcessor(events, nil).HandleInbound(context.Background(), inbound("/end"), sender)
	require.ErrorIs(t, err, blocked)
}

func TestHandleInboundDropsInvalidMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	events := &fakeEvents{replies: func(int, matchmaker.Event) ([]matchmaker.Notification, error) {
		t.Fatal("handler must not be called")
		return nil, nil
	}}

	msg := inbound("hi")
	msg.ReplyTarget = ""
	require.NoError(t, newProcessor(events, nil).HandleInbound(context.Background(), msg, sender))
}

func TestHandleInboundTracksWithoutText(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	events := &fakeEvents{replies: func(int, matchmaker.Event) ([]matchmaker.Notification, error) {
		return []matchmaker.Notification{{Address: "80", Text: "secret words"}}, nil
	}}
	tracker := &fakeTracker{}

	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, newProcessor(events, tracker).HandleInbound(context.Background(), inbound("secret words"), sender))
	assert.Equal(t, []analytics.Message{
		{Text: "message", Kind: analytics.KindIncoming, ConversationID: "70", SenderID: "7"},
		{Text: "relay", Kind: analytics.KindOutgoing, ConversationID: "80"},
	}, tracker.messages)
}

func TestHandleInboundTracksTextWhenAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	events := &fakeEvents{replies: func(int, matchmaker.Event) ([]matchmaker.Notification, error) {
		return []matchmaker.Notification{{Address: "80", Text: "hello"}}, nil
	}}
	tracker := &fakeTracker{text: true}

	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, newProcessor(events, tracker).HandleInbound(context.Background(), inbound("hello"), sender))
	require.Len(t, tracker.messages, 2)
	assert.Equal(t, "hello", tracker.messages[0].Text)
	assert.Equal(t, "hello", tracker.messages[1].Text)
}

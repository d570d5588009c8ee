package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/revue/pkg/config"
)

// fakeSession delivers a scripted event sequence on Prompt, mimicking a
// transport that pushes events from its own goroutine.
type fakeSession struct {
	mu       sync.Mutex
	all      []Handler
	messages []Handler
	idle     []Handler
	errs     []Handler

	script    []EventData
	promptErr error
	prompts   []string
	closed    int
}

func (s *fakeSession) subscribe(list *[]Handler, h Handler) (CloseFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*list = append(*list, h)
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed++
		return nil
	}, nil
}

func (s *fakeSession) SubscribeAll(h Handler) (CloseFunc, error)      { return s.subscribe(&s.all, h) }
func (s *fakeSession) SubscribeMessages(h Handler) (CloseFunc, error) { return s.subscribe(&s.messages, h) }
func (s *fakeSession) SubscribeIdle(h Handler) (CloseFunc, error)     { return s.subscribe(&s.idle, h) }
func (s *fakeSession) SubscribeErrors(h Handler) (CloseFunc, error)   { return s.subscribe(&s.errs, h) }
func (s *fakeSession) Close() error                                   { return nil }

func (s *fakeSession) Prompt(_ context.Context, text string) error {
	s.mu.Lock()
	s.prompts = append(s.prompts, text)
	script := s.script
	s.mu.Unlock()
	if s.promptErr != nil {
		return s.promptErr
	}
	go func() {
		for _, ev := range script {
			s.deliver(ev)
		}
	}()
	return nil
}

func (s *fakeSession) deliver(ev EventData) {
	s.mu.Lock()
	all := append([]Handler(nil), s.all...)
	var targets []Handler
	switch ev.Type {
	case EventMessage:
		targets = append(targets, s.messages...)
	case EventIdle:
		targets = append(targets, s.idle...)
	case EventError:
		targets = append(targets, s.errs...)
	}
	s.mu.Unlock()
	for _, h := range all {
		h(ev)
	}
	for _, h := range targets {
		h(ev)
	}
}

func newSenderForTest(t *testing.T) *MessageSender {
	t.Helper()
	sched := NewSchedulerWithMinInterval(5 * time.Millisecond)
	t.Cleanup(sched.Close)
	return NewMessageSender(sched, config.CollectorConfig{}, nil, nil)
}

func TestMessageSender_MessageThenIdle(t *testing.T) {
	sess := &fakeSession{script: []EventData{
		{Type: EventMessage, Content: "# Findings\n\n### 1. A\n"},
		{Type: EventIdle},
	}}
	sender := newSenderForTest(t)

	content, err := sender.Send(context.Background(), sess, "sec", "Review o/r", 5*time.Second, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "# Findings\n\n### 1. A\n", content)
	assert.Equal(t, []string{"Review o/r"}, sess.prompts)
	assert.Equal(t, 4, sess.closed, "all four subscriptions closed")
}

func TestMessageSender_ErrorEventPropagates(t *testing.T) {
	sess := &fakeSession{script: []EventData{
		{Type: EventError, ErrorMessage: "rate limited"},
	}}
	sender := newSenderForTest(t)

	_, err := sender.Send(context.Background(), sess, "sec", "Review", 5*time.Second, time.Minute)
	var eventErr *SessionEventError
	require.ErrorAs(t, err, &eventErr)
	assert.Equal(t, "rate limited", eventErr.Message)
	assert.Equal(t, 4, sess.closed)
}

func TestMessageSender_HardTimeoutReturnsPartial(t *testing.T) {
	// Messages arrive but the session never goes idle: the hard timeout
	// fires and the accumulated buffer is returned as a soft success.
	sess := &fakeSession{script: []EventData{
		{Type: EventMessage, Content: "part1"},
		{Type: EventMessage, Content: "part2"},
	}}
	sender := newSenderForTest(t)

	content, err := sender.Send(context.Background(), sess, "sec", "Review", 150*time.Millisecond, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "part1part2", content)
}

func TestMessageSender_HardTimeoutWithoutContentFails(t *testing.T) {
	sess := &fakeSession{}
	sender := newSenderForTest(t)

	_, err := sender.Send(context.Background(), sess, "sec", "Review", 50*time.Millisecond, time.Hour)
	assert.ErrorIs(t, err, ErrAwaitTimeout)
	assert.Equal(t, 4, sess.closed, "cleanup runs on the timeout path too")
}

func TestMessageSender_PromptErrorCleansUp(t *testing.T) {
	boom := errors.New("send refused")
	sess := &fakeSession{promptErr: boom}
	sender := newSenderForTest(t)

	_, err := sender.Send(context.Background(), sess, "sec", "Review", time.Second, time.Minute)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, sess.closed)
}

func TestRegister_PartialFailureClosesEarlierSubscriptions(t *testing.T) {
	var closedFirst bool
	okSub := func(Handler) (CloseFunc, error) {
		return func() error { closedFirst = true; return nil }, nil
	}
	failSub := func(Handler) (CloseFunc, error) {
		return nil, errors.New("stream unavailable")
	}
	c := NewContentCollector(nil, config.CollectorConfig{})

	_, err := Register("sec", c, okSub, failSub, okSub, okSub, nil)
	require.Error(t, err)
	assert.True(t, closedFirst)
}

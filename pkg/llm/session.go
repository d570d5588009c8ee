package llm

import (
	"context"
	"errors"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/revue/pkg/session"
)

// chatSession is one streamed conversation. Prompt returns after the
// request is dispatched; the response arrives through the event
// subscriptions as the stream is consumed on a background goroutine.
type chatSession struct {
	// id correlates log lines across the turns of one conversation.
	id      string
	client  *SessionClient
	cfg     session.Config
	system  []sdk.TextBlockParam
	reqOpts []option.RequestOption

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	history   []sdk.MessageParam
	subs      map[session.EventType]map[int]session.Handler
	allSubs   map[int]session.Handler
	nextSubID int
	streaming bool
	closed    bool
	wg        sync.WaitGroup
}

func newChatSession(client *SessionClient, cfg session.Config, system []sdk.TextBlockParam, reqOpts []option.RequestOption) *chatSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &chatSession{
		id:      uuid.NewString(),
		client:  client,
		cfg:     cfg,
		system:  system,
		reqOpts: reqOpts,
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[session.EventType]map[int]session.Handler),
		allSubs: make(map[int]session.Handler),
	}
}

// Prompt sends one user turn. A second Prompt continues the same
// conversation; concurrent prompts on one session are rejected.
func (s *chatSession) Prompt(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session is closed")
	}
	if s.streaming {
		s.mu.Unlock()
		return errors.New("a prompt is already in flight on this session")
	}
	s.streaming = true
	s.history = append(s.history, sdk.NewUserMessage(sdk.NewTextBlock(text)))
	params := s.buildParams()
	s.wg.Add(1)
	s.mu.Unlock()

	go s.consumeStream(ctx, params)
	return nil
}

func (s *chatSession) buildParams() sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		MaxTokens: s.client.maxTokens,
		Messages:  append([]sdk.MessageParam(nil), s.history...),
		Model:     sdk.Model(s.cfg.Model),
	}
	if len(s.system) > 0 {
		params.System = s.system
	}
	if budget := thinkingBudget(s.cfg.ReasoningEffort); budget > 0 {
		if params.MaxTokens <= budget {
			params.MaxTokens = budget + DefaultMaxTokens
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(budget)
	}
	return params
}

// consumeStream drains one streaming response, publishing activity per
// delta and one message event with the assembled text at the end.
func (s *chatSession) consumeStream(ctx context.Context, params sdk.MessageNewParams) {
	defer s.wg.Done()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.ctx.Done():
			cancel()
		case <-streamCtx.Done():
		}
	}()

	stream := s.client.msg.NewStreaming(streamCtx, params, s.reqOpts...)
	defer stream.Close() //nolint:errcheck

	var text []byte
	toolCalls := 0
	for stream.Next() {
		event := stream.Current()
		s.publishActivity()
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockStartEvent:
			if _, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				toolCalls++
			}
		case sdk.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(sdk.TextDelta); ok {
				text = append(text, delta.Text...)
			}
		}
	}
	if err := stream.Err(); err != nil {
		s.client.logger.Warn("Session stream failed", "session_id", s.id, "model", s.cfg.Model, "error", err)
		s.finishStreaming()
		s.publish(session.EventData{Type: session.EventError, ErrorMessage: err.Error()})
		return
	}

	content := string(text)
	s.mu.Lock()
	if content != "" {
		s.history = append(s.history, sdk.NewAssistantMessage(sdk.NewTextBlock(content)))
	}
	// Cleared before publishing so a handler reacting to the idle event
	// can immediately send the next prompt on this session.
	s.streaming = false
	s.mu.Unlock()
	s.publish(session.EventData{Type: session.EventMessage, Content: content, ToolCalls: toolCalls})
	s.publish(session.EventData{Type: session.EventIdle})
}

func (s *chatSession) finishStreaming() {
	s.mu.Lock()
	s.streaming = false
	s.mu.Unlock()
}

func (s *chatSession) SubscribeAll(h session.Handler) (session.CloseFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("session is closed")
	}
	id := s.nextSubID
	s.nextSubID++
	s.allSubs[id] = h
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.allSubs, id)
		return nil
	}, nil
}

func (s *chatSession) SubscribeMessages(h session.Handler) (session.CloseFunc, error) {
	return s.subscribe(session.EventMessage, h)
}

func (s *chatSession) SubscribeIdle(h session.Handler) (session.CloseFunc, error) {
	return s.subscribe(session.EventIdle, h)
}

func (s *chatSession) SubscribeErrors(h session.Handler) (session.CloseFunc, error) {
	return s.subscribe(session.EventError, h)
}

func (s *chatSession) subscribe(t session.EventType, h session.Handler) (session.CloseFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("session is closed")
	}
	if s.subs[t] == nil {
		s.subs[t] = make(map[int]session.Handler)
	}
	id := s.nextSubID
	s.nextSubID++
	s.subs[t][id] = h
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[t], id)
		return nil
	}, nil
}

// publishActivity notifies the all-events subscribers only; typed
// subscribers never see bare activity ticks.
func (s *chatSession) publishActivity() {
	s.mu.Lock()
	handlers := make([]session.Handler, 0, len(s.allSubs))
	for _, h := range s.allSubs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(session.EventData{Type: session.EventActivity})
	}
}

func (s *chatSession) publish(ev session.EventData) {
	s.mu.Lock()
	handlers := make([]session.Handler, 0, len(s.allSubs)+len(s.subs[ev.Type]))
	for _, h := range s.allSubs {
		handlers = append(handlers, h)
	}
	for _, h := range s.subs[ev.Type] {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// Close cancels any in-flight stream and waits for it to unwind.
// Idempotent.
func (s *chatSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	return nil
}

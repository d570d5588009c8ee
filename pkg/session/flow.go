package session

import (
	"context"
	"log/slog"
	"strings"
)

// PromptSender sends one prompt and returns the collected response.
// Implemented by the agent runner on top of MessageSender; stubbed in
// tests.
type PromptSender interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// ResponseEvaluator decides whether a response is satisfying.
type ResponseEvaluator func(string) bool

// DefaultResponseEvaluator accepts any non-blank response.
func DefaultResponseEvaluator(response string) bool {
	return !isBlank(response)
}

// Default prompts for the empty-response recovery sequence.
const (
	DefaultFollowUpPrompt = "Your previous response was empty. Please provide the complete review result now, following the requested output format."

	DefaultLocalResultRequest = "Please provide the review result for the source files above, following the requested output format."

	DefaultLocalSourceHeader = "Below are the source files under review."
)

// MessageFlow orchestrates the prompt-send sequence for one pass: the
// local-vs-remote prompt shape plus bounded follow-up retries for empty
// responses.
type MessageFlow struct {
	Sender   PromptSender
	Evaluate ResponseEvaluator

	FollowUpPrompt     string
	LocalResultRequest string
	LocalSourceHeader  string

	Logger *slog.Logger
}

// NewMessageFlow creates a flow with the default evaluator and prompts.
func NewMessageFlow(sender PromptSender, logger *slog.Logger) *MessageFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageFlow{
		Sender:             sender,
		Evaluate:           DefaultResponseEvaluator,
		FollowUpPrompt:     DefaultFollowUpPrompt,
		LocalResultRequest: DefaultLocalResultRequest,
		LocalSourceHeader:  DefaultLocalSourceHeader,
		Logger:             logger,
	}
}

// Execute runs the prompt protocol. localSource selects the shape: nil
// means a remote target (instruction only, one follow-up on empty);
// non-nil means a local target (instruction + source header + source in
// one prompt, then the local result request, then the follow-up).
// Returns the first satisfying response, or the last response when none
// satisfies.
func (f *MessageFlow) Execute(ctx context.Context, instruction string, localSource *string) (string, error) {
	evaluate := f.Evaluate
	if evaluate == nil {
		evaluate = DefaultResponseEvaluator
	}

	if localSource == nil {
		response, err := f.Sender.Send(ctx, instruction)
		if err != nil {
			return "", err
		}
		if evaluate(response) {
			return response, nil
		}
		f.Logger.Debug("Primary response empty, sending follow-up prompt")
		return f.Sender.Send(ctx, f.FollowUpPrompt)
	}

	prompt := instruction + "\n\n" + f.LocalSourceHeader + "\n\n" + *localSource + "\n"
	response, err := f.Sender.Send(ctx, prompt)
	if err != nil {
		return "", err
	}
	if evaluate(response) {
		return response, nil
	}

	f.Logger.Debug("Local review response empty, requesting result explicitly")
	response, err = f.Sender.Send(ctx, f.LocalResultRequest)
	if err != nil {
		return "", err
	}
	if evaluate(response) {
		return response, nil
	}

	f.Logger.Debug("Local result request empty, sending follow-up prompt")
	return f.Sender.Send(ctx, f.FollowUpPrompt)
}

// isBlank reports whether s is empty or whitespace only.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

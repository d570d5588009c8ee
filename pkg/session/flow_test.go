package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSender returns canned responses in order and records prompts.
type scriptedSender struct {
	responses []string
	errs      []error
	prompts   []string
}

func (s *scriptedSender) Send(_ context.Context, prompt string) (string, error) {
	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var resp string
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	return resp, err
}

func strPtr(s string) *string { return &s }

func TestMessageFlow_RemoteFirstResponseSatisfies(t *testing.T) {
	sender := &scriptedSender{responses: []string{"# Findings"}}
	flow := NewMessageFlow(sender, nil)

	resp, err := flow.Execute(context.Background(), "Review o/r", nil)
	require.NoError(t, err)
	assert.Equal(t, "# Findings", resp)
	assert.Equal(t, []string{"Review o/r"}, sender.prompts)
}

func TestMessageFlow_RemoteEmptyTriggersFollowUp(t *testing.T) {
	sender := &scriptedSender{responses: []string{"", "OK"}}
	flow := NewMessageFlow(sender, nil)

	resp, err := flow.Execute(context.Background(), "Review o/r", nil)
	require.NoError(t, err)
	assert.Equal(t, "OK", resp)
	require.Len(t, sender.prompts, 2)
	assert.Equal(t, DefaultFollowUpPrompt, sender.prompts[1])
}

func TestMessageFlow_RemoteStillEmptyReturnsEmpty(t *testing.T) {
	sender := &scriptedSender{responses: []string{"", "  "}}
	flow := NewMessageFlow(sender, nil)

	resp, err := flow.Execute(context.Background(), "Review o/r", nil)
	require.NoError(t, err)
	assert.Equal(t, "  ", resp)
}

func TestMessageFlow_NilSourceNeverSendsLocalHeader(t *testing.T) {
	sender := &scriptedSender{responses: []string{"", ""}}
	flow := NewMessageFlow(sender, nil)

	_, err := flow.Execute(context.Background(), "Review", nil)
	require.NoError(t, err)
	for _, p := range sender.prompts {
		assert.NotContains(t, p, DefaultLocalSourceHeader)
	}
}

func TestMessageFlow_LocalConcatenatesSource(t *testing.T) {
	sender := &scriptedSender{responses: []string{"result"}}
	flow := NewMessageFlow(sender, nil)

	resp, err := flow.Execute(context.Background(), "Review ./repo", strPtr("func main() {}"))
	require.NoError(t, err)
	assert.Equal(t, "result", resp)
	require.Len(t, sender.prompts, 1)
	assert.True(t, strings.HasPrefix(sender.prompts[0], "Review ./repo\n\n"+DefaultLocalSourceHeader))
	assert.Contains(t, sender.prompts[0], "func main() {}")
}

func TestMessageFlow_LocalEmptyEscalatesThroughBothFollowUps(t *testing.T) {
	sender := &scriptedSender{responses: []string{"", "", "finally"}}
	flow := NewMessageFlow(sender, nil)

	resp, err := flow.Execute(context.Background(), "Review", strPtr("src"))
	require.NoError(t, err)
	assert.Equal(t, "finally", resp)
	require.Len(t, sender.prompts, 3)
	assert.Equal(t, DefaultLocalResultRequest, sender.prompts[1])
	assert.Equal(t, DefaultFollowUpPrompt, sender.prompts[2])
}

func TestMessageFlow_LocalEmptySourceSlotStillLocalShape(t *testing.T) {
	sender := &scriptedSender{responses: []string{"pass2 result"}}
	flow := NewMessageFlow(sender, nil)

	_, err := flow.Execute(context.Background(), "Review", strPtr(""))
	require.NoError(t, err)
	assert.Contains(t, sender.prompts[0], DefaultLocalSourceHeader)
}

func TestMessageFlow_SendErrorPropagates(t *testing.T) {
	boom := errors.New("transport down")
	sender := &scriptedSender{errs: []error{boom}}
	flow := NewMessageFlow(sender, nil)

	_, err := flow.Execute(context.Background(), "Review", nil)
	assert.ErrorIs(t, err, boom)
}

func TestMessageFlow_CustomEvaluator(t *testing.T) {
	sender := &scriptedSender{responses: []string{"partial", "### 1. Done"}}
	flow := NewMessageFlow(sender, nil)
	flow.Evaluate = func(s string) bool { return strings.Contains(s, "### ") }

	resp, err := flow.Execute(context.Background(), "Review", nil)
	require.NoError(t, err)
	assert.Equal(t, "### 1. Done", resp)
}

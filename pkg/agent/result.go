package agent

import "time"

// ReviewResult is the immutable outcome of one pass (or, after
// merging, of one agent). Content is meaningful only on success,
// ErrorMessage only on failure.
type ReviewResult struct {
	Agent        AgentConfig
	Repository   string
	Content      string
	Timestamp    time.Time
	Success      bool
	ErrorMessage string
	// Pass is the 1-based pass number that produced this result.
	Pass int
}

// SuccessResult creates a successful result stamped with the current
// time.
func SuccessResult(agent AgentConfig, repository, content string) ReviewResult {
	return ReviewResult{
		Agent:      agent,
		Repository: repository,
		Content:    content,
		Timestamp:  time.Now(),
		Success:    true,
	}
}

// FailureResult creates a failed result carrying the error message.
func FailureResult(agent AgentConfig, repository, errorMessage string) ReviewResult {
	return ReviewResult{
		Agent:        agent,
		Repository:   repository,
		Timestamp:    time.Now(),
		Success:      false,
		ErrorMessage: errorMessage,
	}
}

// WithPass returns a copy tagged with the pass number.
func (r ReviewResult) WithPass(pass int) ReviewResult {
	r.Pass = pass
	return r
}

package dialog

import "fmt"

// CompletionError wraps any failure of the completion API. It is fatal to
// the turn: nothing is persisted and the delivery shell renders a short
// failure message.
type CompletionError struct {
	Cause error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed: %v", e.Cause)
}

func (e *CompletionError) Unwrap() error { return e.Cause }

// SummarizationError marks a failed summarization pass. It is surfaced
// separately from the turn result because the main answer, already produced,
// is still valid.
type SummarizationError struct {
	Cause error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed: %v", e.Cause)
}

func (e *SummarizationError) Unwrap() error { return e.Cause }

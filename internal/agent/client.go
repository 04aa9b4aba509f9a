package agent

import (
	"errors"
	"fmt"
)

// Surface identifies which user action issued the request.
type Surface string

const (
	SurfaceReport Surface = "report"
	SurfaceChat   Surface = "chat"
)

// User-facing failure texts.
const (
	NetworkErrorMessage = "Network error. Please try again."
	ReportFailedMessage = "Failed to generate report"
	ChatFailedMessage   = "Sorry, I could not process your question. Please try again."
)

var (
	// ErrTransport marks failures to reach the agent at all.
	ErrTransport = errors.New("agent unreachable")
	// ErrRejected marks an answer whose status was not success.
	ErrRejected = errors.New("agent reported failure")
)

// Failure is the error returned to callers. Message is safe to show to users.
type Failure struct {
	Message   string
	Retryable bool
	Err       error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

// IsRetryable reports whether err is a transport failure worth retrying.
func IsRetryable(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Retryable
}

// UserMessage returns the text to show for err.
func UserMessage(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return err.Error()
}

// Interpret classifies the outcome of Client.Send. A transport error becomes
// a retryable Failure. An unsuccessful envelope becomes a Failure carrying
// the agent's own error text when present; report requests also fall back to
// the response message. Anything else is parsed into a Reply.
func Interpret(res Result, sendErr error, surface Surface) (Reply, error) {
	if sendErr != nil {
		return Reply{}, &Failure{
			Message:   NetworkErrorMessage,
			Retryable: true,
			Err:       fmt.Errorf("%w: %w", ErrTransport, sendErr),
		}
	}
	if !res.Succeeded() {
		return Reply{}, &Failure{Message: failureMessage(res, surface), Err: ErrRejected}
	}
	return ParseReply(res.Response.Result), nil
}

func failureMessage(res Result, surface Surface) string {
	if res.Error != "" {
		return res.Error
	}
	if surface == SurfaceChat {
		return ChatFailedMessage
	}
	if res.Response != nil && res.Response.Message != "" {
		return res.Response.Message
	}
	return ReportFailedMessage
}

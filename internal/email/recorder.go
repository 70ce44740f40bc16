package email

import (
	"context"
	"errors"
	"sync"
)

// Call records a single outbound message.
type Call struct {
	To      string
	Subject string
	Token   string
	Body    string
}

// Recorder is a Service double that records sends instead of dialing
// SMTP. It doubles as the dev-mode sender when no relay is configured.
type Recorder struct {
	mu         sync.Mutex
	calls      []Call
	ShouldFail bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SendVerification(_ context.Context, email, token string) error {
	return r.record(Call{To: email, Subject: "verification", Token: token})
}

func (r *Recorder) SendPasswordReset(_ context.Context, email, token string) error {
	return r.record(Call{To: email, Subject: "password-reset", Token: token})
}

func (r *Recorder) SendWelcome(_ context.Context, email, name string) error {
	return r.record(Call{To: email, Subject: "welcome", Body: name})
}

func (r *Recorder) SendCustom(_ context.Context, to, subject, content string) error {
	return r.record(Call{To: to, Subject: subject, Body: content})
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if r.ShouldFail {
		return errors.New("send failed")
	}
	return nil
}

// Calls returns a copy of every recorded send.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Last returns the most recent send, if any.
func (r *Recorder) Last() (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return Call{}, false
	}
	return r.calls[len(r.calls)-1], true
}

package exchange

import "fmt"

type SessionState int

const (
	SessionCreated SessionState = iota
	SessionSubmitted
	SessionPolling
	SessionReady
	SessionExpired
	SessionConsumed
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionSubmitted:
		return "submitted"
	case SessionPolling:
		return "polling"
	case SessionReady:
		return "ready"
	case SessionExpired:
		return "expired"
	case SessionConsumed:
		return "consumed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Session tracks one relayed exchange on the sender side. The id is
// assigned by the directory at submit time. Consumed and Expired are
// terminal for the client regardless of what the directory record does
// afterwards.
type Session struct {
	ID       string
	Proposal string
	State    SessionState
	Attempts int
}

func NewSession(proposal string) *Session {
	return &Session{Proposal: proposal, State: SessionCreated}
}

func (s *Session) Submit(id string) {
	s.ID = id
	s.State = SessionSubmitted
}

// Poll counts one more retrieve attempt and returns its number.
func (s *Session) Poll() int {
	s.State = SessionPolling
	s.Attempts++
	return s.Attempts
}

func (s *Session) MarkReady() {
	s.State = SessionReady
}

func (s *Session) Consume() {
	s.State = SessionConsumed
}

func (s *Session) Expire() {
	s.State = SessionExpired
}

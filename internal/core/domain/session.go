package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is a registered exchange parked on the directory.
// The sender stores the original proposal under the receiver's address,
// the receiver completes it with the augmented proposal, and the sender
// claims the response exactly once.
type Session struct {
	Id        string
	Proposal  string
	Address   string
	Response  string // empty until the receiver responds
	CreatedAt int64
	ExpiresAt int64
}

func NewSession(proposal, address string, ttl time.Duration) (*Session, error) {
	if len(proposal) <= 0 {
		return nil, fmt.Errorf("missing proposal")
	}
	if len(address) <= 0 {
		return nil, fmt.Errorf("missing address")
	}

	now := time.Now()
	return &Session{
		Id:        uuid.New().String(),
		Proposal:  proposal,
		Address:   address,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}, nil
}

// IsPending returns true while the receiver has not responded yet.
func (s Session) IsPending() bool {
	return len(s.Response) <= 0
}

func (s Session) IsExpired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

func (s *Session) Complete(response string) error {
	if len(response) <= 0 {
		return fmt.Errorf("missing response proposal")
	}
	if !s.IsPending() {
		return ErrSessionAlreadyCompleted
	}

	s.Response = response
	return nil
}

package application

import (
	"context"
	"fmt"
	"time"

	"github.com/payjoin-network/payjoin/internal/core/domain"
	"github.com/payjoin-network/payjoin/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

type SessionInfo struct {
	Id        string
	CreatedAt int64
}

type Service interface {
	Start() error
	Stop()
	RegisterSession(ctx context.Context, proposal, address string) (string, error)
	ClaimResponse(ctx context.Context, sessionId string) (string, error)
	GetPendingSessions(ctx context.Context, address string) ([]SessionInfo, error)
	GetSessionProposal(ctx context.Context, sessionId string) (string, error)
	CompleteSession(ctx context.Context, sessionId, response string) error
}

type service struct {
	repoManager ports.RepoManager
	scheduler   ports.SchedulerService

	sessionTTL    time.Duration
	sweepInterval int64
}

func NewService(
	repoManager ports.RepoManager, scheduler ports.SchedulerService,
	sessionTTL, sweepInterval int64,
) (Service, error) {
	if sessionTTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	if sweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive")
	}

	return &service{
		repoManager, scheduler, time.Duration(sessionTTL) * time.Second, sweepInterval,
	}, nil
}

func (s *service) Start() error {
	s.scheduler.Start()
	return s.scheduler.ScheduleTaskEvery(s.sweepInterval, s.sweepExpiredSessions)
}

func (s *service) Stop() {
	s.scheduler.Stop()
	s.repoManager.Close()
}

func (s *service) RegisterSession(
	ctx context.Context, proposal, address string,
) (string, error) {
	session, err := domain.NewSession(proposal, address, s.sessionTTL)
	if err != nil {
		return "", err
	}

	if err := s.repoManager.Sessions().AddSession(ctx, *session); err != nil {
		return "", err
	}

	log.Debugf("registered session %s for address %s", session.Id, address)
	return session.Id, nil
}

// ClaimResponse consumes the receiver's response. An unclaimed pending
// session looks exactly like an unknown one to the caller.
func (s *service) ClaimResponse(ctx context.Context, sessionId string) (string, error) {
	response, err := s.repoManager.Sessions().PopSessionResponse(ctx, sessionId)
	if err != nil {
		return "", err
	}

	log.Debugf("session %s claimed", sessionId)
	return response, nil
}

func (s *service) GetPendingSessions(
	ctx context.Context, address string,
) ([]SessionInfo, error) {
	sessions, err := s.repoManager.Sessions().GetSessionsWithAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		if !session.IsPending() {
			continue
		}
		infos = append(infos, SessionInfo{session.Id, session.CreatedAt})
	}
	return infos, nil
}

func (s *service) GetSessionProposal(
	ctx context.Context, sessionId string,
) (string, error) {
	session, err := s.repoManager.Sessions().GetSessionWithId(ctx, sessionId)
	if err != nil {
		return "", err
	}
	return session.Proposal, nil
}

func (s *service) CompleteSession(ctx context.Context, sessionId, response string) error {
	session, err := s.repoManager.Sessions().GetSessionWithId(ctx, sessionId)
	if err != nil {
		return err
	}

	if err := session.Complete(response); err != nil {
		return err
	}

	if err := s.repoManager.Sessions().UpdateSession(ctx, *session); err != nil {
		return err
	}

	log.Debugf("session %s completed", sessionId)
	return nil
}

func (s *service) sweepExpiredSessions() {
	ctx := context.Background()

	sessions, err := s.repoManager.Sessions().GetExpiredSessions(ctx, time.Now().Unix())
	if err != nil {
		log.WithError(err).Warn("failed to list expired sessions")
		return
	}
	if len(sessions) <= 0 {
		return
	}

	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.Id)
	}

	if err := s.repoManager.Sessions().DeleteSessions(ctx, ids); err != nil {
		log.WithError(err).Warn("failed to delete expired sessions")
		return
	}

	log.Debugf("swept %d expired session(s)", len(ids))
}

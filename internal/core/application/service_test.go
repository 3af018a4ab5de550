package application

import (
	"context"
	"testing"
	"time"

	"github.com/payjoin-network/payjoin/internal/core/domain"
	"github.com/payjoin-network/payjoin/internal/infrastructure/db"
	"github.com/stretchr/testify/require"
)

const (
	proposal = "cHNidP8BAgQCAAAAAQMEAAAAAAEEAQEBBQEC"
	response = "cHNidP8BAgQCAAAAAQMEAAAAAAEEAQIBBQED"
	address  = "bcrt1qe8nv9ggwmvr2lf2kacvjkw4pe4lh8fu82xlvwg"
)

var ctx = context.Background()

type schedulerStub struct {
	started  bool
	interval int64
	task     func()
}

func (s *schedulerStub) Start() { s.started = true }
func (s *schedulerStub) Stop()  { s.started = false }
func (s *schedulerStub) ScheduleTaskEvery(seconds int64, task func()) error {
	s.interval = seconds
	s.task = task
	return nil
}

func newTestService(t *testing.T, sessionTTL int64) (Service, *schedulerStub) {
	repoManager, err := db.NewService(db.ServiceConfig{
		SessionStoreType: "inmemory",
	})
	require.NoError(t, err)

	scheduler := &schedulerStub{}
	svc, err := NewService(repoManager, scheduler, sessionTTL, 600)
	require.NoError(t, err)
	return svc, scheduler
}

func TestNewServiceValidation(t *testing.T) {
	repoManager, err := db.NewService(db.ServiceConfig{
		SessionStoreType: "inmemory",
	})
	require.NoError(t, err)

	_, err = NewService(repoManager, &schedulerStub{}, 0, 600)
	require.EqualError(t, err, "session ttl must be positive")

	_, err = NewService(repoManager, &schedulerStub{}, 3600, 0)
	require.EqualError(t, err, "sweep interval must be positive")
}

func TestServiceFlow(t *testing.T) {
	svc, _ := newTestService(t, 3600)

	sessionId, err := svc.RegisterSession(ctx, proposal, address)
	require.NoError(t, err)
	require.NotEmpty(t, sessionId)

	_, err = svc.RegisterSession(ctx, "", address)
	require.Error(t, err)

	// pending sessions are not claimable
	_, err = svc.ClaimResponse(ctx, sessionId)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	sessions, err := svc.GetPendingSessions(ctx, address)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, sessionId, sessions[0].Id)

	got, err := svc.GetSessionProposal(ctx, sessionId)
	require.NoError(t, err)
	require.Equal(t, proposal, got)

	err = svc.CompleteSession(ctx, sessionId, "")
	require.EqualError(t, err, "missing response proposal")

	err = svc.CompleteSession(ctx, sessionId, response)
	require.NoError(t, err)

	sessions, err = svc.GetPendingSessions(ctx, address)
	require.NoError(t, err)
	require.Empty(t, sessions)

	err = svc.CompleteSession(ctx, sessionId, response)
	require.ErrorIs(t, err, domain.ErrSessionAlreadyCompleted)

	claimed, err := svc.ClaimResponse(ctx, sessionId)
	require.NoError(t, err)
	require.Equal(t, response, claimed)

	_, err = svc.ClaimResponse(ctx, sessionId)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.GetSessionProposal(ctx, sessionId)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestServiceStartStop(t *testing.T) {
	svc, scheduler := newTestService(t, 3600)

	require.NoError(t, svc.Start())
	require.True(t, scheduler.started)
	require.Equal(t, int64(600), scheduler.interval)
	require.NotNil(t, scheduler.task)

	svc.Stop()
	require.False(t, scheduler.started)
}

func TestSweepExpiredSessions(t *testing.T) {
	svc, _ := newTestService(t, 3600)
	appSvc := svc.(*service)

	expired, err := domain.NewSession(proposal, address, -time.Minute)
	require.NoError(t, err)
	require.NoError(t, appSvc.repoManager.Sessions().AddSession(ctx, *expired))

	aliveId, err := svc.RegisterSession(ctx, proposal, address)
	require.NoError(t, err)

	appSvc.sweepExpiredSessions()

	_, err = svc.GetSessionProposal(ctx, expired.Id)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = svc.GetSessionProposal(ctx, aliveId)
	require.NoError(t, err)
}

package timescheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/payjoin-network/payjoin/internal/core/ports"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) ScheduleTaskEvery(seconds int64, task func()) error {
	if seconds <= 0 {
		return fmt.Errorf("cannot schedule task with non-positive interval")
	}

	_, err := s.scheduler.Every(int(seconds)).Seconds().Do(task)
	return err
}

package ports

type SchedulerService interface {
	Start()
	Stop()
	ScheduleTaskEvery(seconds int64, task func()) error
}

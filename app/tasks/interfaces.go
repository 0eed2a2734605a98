package tasks

// TaskSchedulerInterface is used by the main application and the API.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	RunJob(name string) (string, error)
	History() map[string]RunRecord
}

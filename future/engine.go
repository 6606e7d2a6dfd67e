package future

import (
	"github.com/cronfuture/cronfuture/cronengine"
)

// EntryID, Job and JobOption are re-exported so callers of this package
// never need to import cronengine directly just to construct a CronEngine
// or a Task wrapper.
type (
	EntryID   = cronengine.EntryID
	Job       = cronengine.Job
	JobOption = cronengine.JobOption
)

// CronEngine is the external collaborator spec §6 calls "the cron engine":
// schedule(cron, callback) -> id, and deschedule(id). A *cronengine.Cron
// satisfies this directly.
type CronEngine interface {
	AddJob(spec string, cmd Job, opts ...JobOption) (EntryID, error)
	Remove(id EntryID)
}

// validatorFor adapts a cronengine.ScheduleParser into the plain
// func(string) error that ParsePattern expects. The parsed Schedule is
// discarded; only the parse error is returned.
func validatorFor(parser cronengine.ScheduleParser) func(string) error {
	return func(spec string) error {
		_, err := parser.Parse(spec)
		return err
	}
}

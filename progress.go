package castor

// Reporter receives progress events from hashing and transfer operations.
// It is purely observational: implementations must not influence ordering
// or results, and must be safe for concurrent use because pool workers
// call Step from multiple goroutines.
type Reporter interface {
	// Begin announces an operation and how many units it will process.
	// A negative total means the count is not known up front.
	Begin(name string, total int)

	// Step records one completed unit.
	Step(name string)

	// End announces the operation finished, successfully or not.
	End(name string)
}

// nopReporter is the default Reporter: it discards every event.
type nopReporter struct{}

func (nopReporter) Begin(string, int) {}
func (nopReporter) Step(string)       {}
func (nopReporter) End(string)        {}

package workflow

// Reporter renders workflow events. Its methods are called on the event
// loop, except Confirm which runs on a worker goroutine and may block.
type Reporter interface {
	StepEntered(name string)
	Progress(step string, downloaded, total int64)
	Status(step, msg string)
	Output(step, line string)
	Confirm(prompt string) bool
	Failed(err error)
	Finished(msg string)
}

// NopReporter discards every event and confirms every prompt.
type NopReporter struct{}

func (NopReporter) StepEntered(string)            {}
func (NopReporter) Progress(string, int64, int64) {}
func (NopReporter) Status(string, string)         {}
func (NopReporter) Output(string, string)         {}
func (NopReporter) Confirm(string) bool           { return true }
func (NopReporter) Failed(error)                  {}
func (NopReporter) Finished(string)               {}

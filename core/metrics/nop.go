package metrics

type nopCounter struct{}

func (nopCounter) Inc()        {}
func (nopCounter) Add(float64) {}

type nopHistogram struct{}

func (nopHistogram) Observe(float64) {}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopCounter returns a Counter that discards everything.
func NopCounter() Counter { return nopCounter{} }

// NopHistogram returns a Histogram that discards everything.
func NopHistogram() Histogram { return nopHistogram{} }

// NopTimer returns a Timer that discards everything.
func NopTimer() Timer { return nopTimer{} }

// NopTimerFunc returns a TimerFunc producing no-op timers.
func NopTimerFunc() TimerFunc { return func() Timer { return nopTimer{} } }

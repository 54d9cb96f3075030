package domain

// Outcome is the result of one attempt as seen by the pacing controller.
type Outcome struct {
	Success      bool
	FirstAttempt bool
	Err          error
}

// Succeeded builds a success outcome.
func Succeeded(firstAttempt bool) Outcome {
	return Outcome{Success: true, FirstAttempt: firstAttempt}
}

// Failed builds a failure outcome.
func Failed(err error) Outcome {
	return Outcome{Err: err}
}

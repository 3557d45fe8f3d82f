// Package check evaluates named assertions against responses and
// run-level thresholds against aggregated metrics.
package check

import "time"

// Response is the slice of an HTTP exchange that checks look at.
// Status is 0 when the request never got a response.
type Response struct {
	Status   int
	Body     []byte
	Duration time.Duration
	Err      error
}

// Check is a single named predicate.
type Check struct {
	Name string
	Fn   func(Response) bool
}

// Recorder receives every individual check outcome.
type Recorder interface {
	RecordCheck(name string, ok bool)
}

// Set is an ordered group of checks run together.
type Set []Check

// Run evaluates every check, even after one fails, and reports whether
// all of them passed. rec may be nil.
func (s Set) Run(resp Response, rec Recorder) bool {
	all := true
	for _, c := range s {
		ok := c.Fn(resp)
		if rec != nil {
			rec.RecordCheck(c.Name, ok)
		}
		all = all && ok
	}
	return all
}

// Names lists the checks in order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// AcceptableResponseTime bounds a single request in the soak checks.
const AcceptableResponseTime = 2 * time.Second

func StatusIs(code int) func(Response) bool {
	return func(r Response) bool { return r.Status == code }
}

func HasBody(r Response) bool { return len(r.Body) > 0 }

func FasterThan(d time.Duration) func(Response) bool {
	return func(r Response) bool { return r.Duration < d }
}

func NoTimeout(r Response) bool { return r.Status != 0 }

// MainChecks run against the listing endpoint.
func MainChecks() Set {
	return Set{
		{Name: "main: status is 200", Fn: StatusIs(200)},
		{Name: "main: has body", Fn: HasBody},
		{Name: "main: response time acceptable", Fn: FasterThan(AcceptableResponseTime)},
		{Name: "main: no timeout", Fn: NoTimeout},
	}
}

// DetailChecks run against the per-item endpoint.
func DetailChecks() Set {
	return Set{
		{Name: "detail: status is 200", Fn: StatusIs(200)},
		{Name: "detail: response time acceptable", Fn: FasterThan(AcceptableResponseTime)},
	}
}

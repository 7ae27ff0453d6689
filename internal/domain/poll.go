package domain

import "time"

// PollFlag is the persisted single-flight token of the investment poller.
type PollFlag struct {
	ID         string
	Running    bool
	Owner      string    // poller instance holding the lease
	LeaseUntil time.Time // a running flag past this instant is considered abandoned
	UpdatedAt  time.Time
}

// Held reports whether the flag blocks another poller at instant now.
func (f PollFlag) Held(now time.Time) bool {
	return f.Running && now.Before(f.LeaseUntil)
}

// CyclePhase names the part of a poll cycle a session was processed in.
type CyclePhase string

const (
	CyclePhaseExecute CyclePhase = "execute"
	CyclePhaseResolve CyclePhase = "resolve"
)

// SessionResult is the outcome of processing one session in a cycle.
type SessionResult struct {
	SessionID string
	Phase     CyclePhase
	MarketID  string
	Strategy  Strategy
	Outcome   Outcome // resolve phase only
	Target    int     // resolve phase only
	Err       error
	NotReady  bool // Err is an expected "try later" condition
}

// SkipReason says why a cycle did not run.
type SkipReason string

const (
	SkipCycleRunning SkipReason = "previous cycle still running"
	SkipFlagHeld     SkipReason = "another poller holds the flag"
)

// CycleReport summarises one poll cycle.
type CycleReport struct {
	StartedAt  time.Time
	Duration   time.Duration
	Skipped    bool       // another cycle held the flag
	SkipReason SkipReason // set when Skipped
	Investing  int        // sessions found in investing
	Invested   int        // sessions found in invested
	Results    []SessionResult
}

// Placed returns the sessions that moved to invested in this cycle.
func (r CycleReport) Placed() []SessionResult {
	return r.filter(func(sr SessionResult) bool { return sr.Phase == CyclePhaseExecute && sr.Err == nil })
}

// Resolved returns the sessions that were resolved in this cycle.
func (r CycleReport) Resolved() []SessionResult {
	return r.filter(func(sr SessionResult) bool { return sr.Phase == CyclePhaseResolve && sr.Err == nil })
}

// Failures returns the sessions that failed for a reason other than "not ready".
func (r CycleReport) Failures() []SessionResult {
	return r.filter(func(sr SessionResult) bool { return sr.Err != nil && !sr.NotReady })
}

// Pending returns the sessions that are waiting on the exchange.
func (r CycleReport) Pending() []SessionResult {
	return r.filter(func(sr SessionResult) bool { return sr.Err != nil && sr.NotReady })
}

func (r CycleReport) filter(keep func(SessionResult) bool) []SessionResult {
	var out []SessionResult
	for _, sr := range r.Results {
		if keep(sr) {
			out = append(out, sr)
		}
	}
	return out
}

package xrelay

import (
	"time"
)

// ActivityType enumerates dispatcher lifecycle activity for the Observer pattern.
type ActivityType string

const (
	ActivityIdle     ActivityType = "idle"     // source was empty, backing off
	ActivityAccepted ActivityType = "accepted" // recipient accepted the payload
	ActivityRejected ActivityType = "rejected" // recipient rejected, backing off
	ActivitySkipped  ActivityType = "skipped"  // event had no payload or no recipients
	ActivityFault    ActivityType = "fault"    // loop terminated by an error
	ActivityStopped  ActivityType = "stopped"  // loop terminated by cancellation
)

// Activity carries diagnostics for observers.
type Activity struct {
	Type      ActivityType
	Recipient Address
	Origin    string
	// Duration is the time spent in Sink.Send for accepted/rejected activity.
	Duration time.Duration
	// Backoff is the wait that follows idle/rejected activity.
	Backoff time.Duration
	Err     error
}

// State is the dispatcher's position in its loop.
type State int32

const (
	StateIdle State = iota
	StateDelivering
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDelivering:
		return "delivering"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

package xrelay

import (
	"github.com/trickstertwo/xlog"
)

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(a Activity)

func (f ObserverFunc) OnActivity(a Activity) { f(a) }

// LoggingObserver is an Adapter that emits dispatcher activity via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnActivity(a Activity) {
	if o.Logger == nil {
		return
	}
	lg := o.Logger
	if a.Recipient != (Address{}) {
		lg = lg.With(xlog.Str("recipient", a.Recipient.String()))
	}
	if a.Origin != "" {
		lg = lg.With(xlog.Str("origin", a.Origin))
	}
	if a.Duration > 0 {
		lg = lg.With(xlog.Dur("duration", a.Duration))
	}
	if a.Backoff > 0 {
		lg = lg.With(xlog.Dur("backoff", a.Backoff))
	}

	switch a.Type {
	case ActivityIdle:
		lg.Debug().Msg("xrelay: no items")
	case ActivityAccepted:
		lg.Debug().Msg("xrelay: data accepted")
	case ActivityRejected:
		lg.Debug().Msg("xrelay: data rejected, backing off")
	case ActivitySkipped:
		lg.Debug().Msg("xrelay: event without payload or recipients skipped")
	case ActivityFault:
		lg.Error().Err(a.Err).Msg("xrelay: dispatcher stopped on fault")
	case ActivityStopped:
		lg.Debug().Msg("xrelay: dispatcher stopped")
	}
}

package xrelay

import (
	"errors"
	"fmt"
)

var (
	ErrNoSource          = errors.New("xrelay: no source configured")
	ErrNoSink            = errors.New("xrelay: no sink configured")
	ErrNegativeInterval  = errors.New("xrelay: idle interval must not be negative")
	ErrAlreadyRunning    = errors.New("xrelay: dispatcher already running")
	ErrInvalidSendResult = errors.New("xrelay: sink returned an invalid send result")
	ErrPanic             = errors.New("xrelay: panic recovered")
	ErrMalformedEvent    = errors.New("xrelay: malformed event")
)

type ErrUnknownSource struct{ name string }

func (e ErrUnknownSource) Error() string { return fmt.Sprintf("unknown source: %s", e.name) }

type ErrUnknownSink struct{ name string }

func (e ErrUnknownSink) Error() string { return fmt.Sprintf("unknown sink: %s", e.name) }

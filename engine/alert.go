package engine

import "time"

type (
	// Alert is a message for the user. Alerts raised inside the audio
	// callback travel to the control thread through the broker.
	Alert struct {
		Name     string // alerts with the same name replace each other
		Priority AlertPriority
		Message  string
		Duration time.Duration
	}

	AlertPriority int
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

const defaultAlertDuration = 3 * time.Second

func (p AlertPriority) String() string {
	switch p {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "unknown"
}

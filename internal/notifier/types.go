package notifier

import "time"

// Config controls the async notification pipeline.
type Config struct {
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

// Notification is one rendered message bound for a subscriber's private chat.
type Notification struct {
	Subscriber int64
	Text       string
	// Key identifies the emission for logging and bus events.
	Key string
}

// Bus topics published by the notifier.
const (
	TopicSent   = "notifier.sent"
	TopicFailed = "notifier.failed"
)

// DeliveryEvent is the Data carried on TopicSent/TopicFailed.
type DeliveryEvent struct {
	Subscriber int64     `json:"subscriber"`
	Key        string    `json:"key"`
	At         time.Time `json:"at"`
	Error      string    `json:"error,omitempty"`
}

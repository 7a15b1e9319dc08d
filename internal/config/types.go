package config

type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	Storage     StorageConfig     `json:"storage"`
	Activity    ActivityConfig    `json:"activity"`
	Notifier    NotifierConfig    `json:"notifier"`
	Maintenance MaintenanceConfig `json:"maintenance"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout  string  `json:"poll_timeout"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type StorageConfig struct {
	// Driver: "sqlite" (default) or "memory".
	Driver string `json:"driver"`
	Path   string `json:"path"`
	// BusyTimeout is a Go duration string; sqlite only.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type ActivityConfig struct {
	// HistorySize bounds the per-chat recent-message ring.
	HistorySize int `json:"history_size"`
	// Workers is the number of evaluation shards; messages from the same
	// chat always run on the same shard.
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
	// EvalTimeout bounds one evaluation; expired messages are dropped.
	EvalTimeout string `json:"eval_timeout"`
}

type NotifierConfig struct {
	Workers    int `json:"workers"`
	QueueSize  int `json:"queue_size"`
	RatePerSec int `json:"rate_per_sec"`
	RetryMax   int `json:"retry_max"`
	// RetryBase / RetryMaxDelay are Go duration strings.
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
}

type MaintenanceConfig struct {
	// Cron expressions (robfig/cron, standard 5-field).
	CooldownPrune string `json:"cooldown_prune"`
	IndexRefresh  string `json:"index_refresh"`
	DailySummary  string `json:"daily_summary"`
	// CooldownMaxAge is a Go duration string; gate entries idle longer than
	// this are pruned.
	CooldownMaxAge string `json:"cooldown_max_age"`
}

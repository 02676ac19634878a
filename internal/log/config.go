package log

// LoggerConfig drives Init. It is loaded by internal/config under the
// top-level "log" key.
type LoggerConfig struct {
	Level     string           `mapstructure:"level"`
	Pattern   string           `mapstructure:"pattern"`
	Time      string           `mapstructure:"time"`
	Appenders []AppenderConfig `mapstructure:"appenders"`
}

// AppenderConfig names one output sink and its type-specific options.
// Options is re-decoded into the concrete *Opt struct for Type by
// addAppender.
type AppenderConfig struct {
	Type    string                 `mapstructure:"type"` // "stdout", "file", "kafka"
	Options map[string]interface{} `mapstructure:"options"`
}

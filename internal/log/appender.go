package log

import (
	"fmt"
	"io"
	"os"

	"github.com/go-viper/mapstructure/v2"
)

type MultiWriter struct {
	writers []io.Writer
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		_, e := w.Write(p)
		if e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

// addAppender decodes cfg.Options into the concrete options struct for
// cfg.Type and attaches the corresponding writer to mw.
func addAppender(mw *MultiWriter, cfg AppenderConfig) error {
	switch cfg.Type {
	case "", "stdout", "console":
		mw.Add(os.Stdout)
	case "file":
		var opt FileAppenderOpt
		if err := mapstructure.Decode(cfg.Options, &opt); err != nil {
			return fmt.Errorf("log: decoding file appender options: %w", err)
		}
		mw.AddFileAppender(opt)
	case "kafka":
		var opt KafkaAppenderOpt
		if err := mapstructure.Decode(cfg.Options, &opt); err != nil {
			return fmt.Errorf("log: decoding kafka appender options: %w", err)
		}
		mw.AddKafkaAppender(opt)
	default:
		return fmt.Errorf("log: unknown appender type %q", cfg.Type)
	}
	return nil
}

package recorder

import "fmt"

const (
	defaultBufferSize = 256 * 1024

	metricsFile = "metrics.csv"
	tradesFile  = "trades.csv"
	fillsFile   = "mm_fills.csv"
	summaryFile = "summary.json"
)

// Config controls where and how run artifacts are written.
type Config struct {
	Dir        string
	BufferSize int
}

// DefaultConfig returns a baseline configuration for the artifact writer.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:        dir,
		BufferSize: defaultBufferSize,
	}
}

func (c Config) withDefaults() Config {
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid recorder config: Dir is empty")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("invalid recorder config: BufferSize must be > 0")
	}
	return nil
}

package config

import "fmt"

// ConfigError reports a missing or invalid configuration key. It is the only
// error the consolidation core raises; data-quality problems are filtered
// instead of returned.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

func newError(key, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

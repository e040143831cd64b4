package paginator

import (
	"errors"
	"fmt"
)

var ErrSessionActive = errors.New("message already has an active pagination session")

// ConfigError reports an invalid builder option.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid paginator config: %s %s", e.Field, e.Reason)
}

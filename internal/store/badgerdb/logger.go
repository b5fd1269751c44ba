package badgerdb

import (
	"fmt"
	"log/slog"
	"strings"
)

// slogAdapter satisfies badger.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Errorf(format string, args ...interface{}) {
	a.logger.Error(trimMessage(format, args))
}

func (a slogAdapter) Warningf(format string, args ...interface{}) {
	a.logger.Warn(trimMessage(format, args))
}

func (a slogAdapter) Infof(format string, args ...interface{}) {
	a.logger.Debug(trimMessage(format, args))
}

func (a slogAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug(trimMessage(format, args))
}

func trimMessage(format string, args []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}

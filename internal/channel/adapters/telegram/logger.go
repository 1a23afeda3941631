package telegram

import (
	"fmt"
	"log/slog"
	"strings"
)

// botLogger routes tgbotapi's printf-style output into slog. The library only
// writes request traces (when bot.Debug is on) and polling failures, so traces
// go to debug and everything else is a warning.
type botLogger struct {
	log *slog.Logger
}

func newBotLogger(log *slog.Logger) *botLogger {
	return &botLogger{log: log.With(slog.String("source", "tgbotapi"))}
}

func (l *botLogger) Println(v ...any) {
	l.emit(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (l *botLogger) Printf(format string, v ...any) {
	l.emit(fmt.Sprintf(format, v...))
}

func (l *botLogger) emit(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if strings.HasPrefix(line, "Endpoint:") {
		l.log.Debug(line)
		return
	}
	l.log.Warn(line)
}

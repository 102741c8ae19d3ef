package netx

import (
	"context"

	"log/slog"
)

// levelTrace prints below slog.LevelDebug for per-packet noise.
const levelTrace slog.Level = slog.LevelDebug - 1

func (s *Stack) logerr(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelError, msg, attrs...)
}

func (s *Stack) warn(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelWarn, msg, attrs...)
}

func (s *Stack) info(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelInfo, msg, attrs...)
}

func (s *Stack) debug(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelDebug, msg, attrs...)
}

func (s *Stack) trace(msg string, attrs ...slog.Attr) {
	s.logattrs(levelTrace, msg, attrs...)
}

func (s *Stack) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if s.logger == nil || !s.logger.Enabled(context.Background(), level) {
		return
	}
	s.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

package logger

import "testing"

func TestNewReturnsLogger(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := New("test")
	if l == nil {
		t.Fatal("expected logger")
	}
	l.Infof("hello %s", "world")
	l.Debugw("fields", map[string]any{"a": 1})
}

func TestLogLevelOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	l := New("test")
	// must not panic at suppressed levels
	l.Debugf("suppressed")
	l.Warnf("suppressed")
}

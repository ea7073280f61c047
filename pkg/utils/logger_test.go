package utils

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		debug     bool
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{debug: true, wantDebug: true, wantInfo: true, wantWarn: true},
		// Production logging starts at warn.
		{debug: false, wantDebug: false, wantInfo: false, wantWarn: true},
	}
	for _, tt := range tests {
		logger, err := NewLogger(tt.debug)
		if err != nil {
			t.Fatalf("NewLogger(%v) error: %v", tt.debug, err)
		}
		core := logger.Core()
		if got := core.Enabled(zap.DebugLevel); got != tt.wantDebug {
			t.Errorf("NewLogger(%v): debug enabled = %v", tt.debug, got)
		}
		if got := core.Enabled(zap.InfoLevel); got != tt.wantInfo {
			t.Errorf("NewLogger(%v): info enabled = %v", tt.debug, got)
		}
		if got := core.Enabled(zap.WarnLevel); got != tt.wantWarn {
			t.Errorf("NewLogger(%v): warn enabled = %v", tt.debug, got)
		}
		_ = logger.Sync()
	}
}

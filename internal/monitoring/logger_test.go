package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var captured string
	SetLogger(func(format string, v ...interface{}) {
		captured = fmt.Sprintf(format, v...)
	})

	Logf("sample %d rejected", 7)
	if captured != "sample 7 rejected" {
		t.Errorf("captured %q", captured)
	}
}

func TestSetLoggerNilInstallsNoop(t *testing.T) {
	SetLogger(nil)
	if Logf == nil {
		t.Fatal("Logf must never be nil")
	}
	// Must not panic.
	Logf("dropped %v", struct{}{})
}

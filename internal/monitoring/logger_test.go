package monitoring

import (
	"fmt"
	"testing"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)

	Logf("frame %d", 7)
	if len(*lines) != 1 || (*lines)[0] != "frame 7" {
		t.Fatalf("got %q, want [\"frame 7\"]", *lines)
	}

	SetLogger(nil)
	Logf("dropped")
	if len(*lines) != 1 {
		t.Errorf("no-op logger forwarded a message: %q", *lines)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}

func TestDebugf(t *testing.T) {
	lines := captureLogs(t)
	t.Cleanup(func() { SetDebug(false) })

	SetDebug(false)
	Debugf("hidden %d", 1)
	if len(*lines) != 0 {
		t.Fatalf("debug disabled but got %q", *lines)
	}

	SetDebug(true)
	if !DebugEnabled() {
		t.Fatal("DebugEnabled() = false after SetDebug(true)")
	}
	Debugf("shown %d", 2)
	if len(*lines) != 1 || (*lines)[0] != "[debug] shown 2" {
		t.Errorf("got %q, want [\"[debug] shown 2\"]", *lines)
	}
}

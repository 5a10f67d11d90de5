package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestInfoAlwaysEmitted(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "worker-0", false)
	l.Info("create_agent", F("call_id", 7), F("agent_id", "a1"))

	out := buf.String()
	if !strings.Contains(out, "INFO") || !strings.Contains(out, "worker-0") {
		t.Errorf("missing level/role in output: %q", out)
	}
	if !strings.Contains(out, "call_id=7") || !strings.Contains(out, "agent_id=a1") {
		t.Errorf("missing fields in output: %q", out)
	}
}

func TestDebugSuppressedUnlessVerbose(t *testing.T) {
	var buf bytes.Buffer
	quiet := New(&buf, "worker-0", false)
	quiet.Debug("trace")
	if buf.Len() != 0 {
		t.Errorf("expected no output for Debug on non-verbose logger, got %q", buf.String())
	}

	var vbuf bytes.Buffer
	verbose := New(&vbuf, "worker-0", true)
	verbose.Debug("trace")
	if vbuf.Len() == 0 {
		t.Errorf("expected output for Debug on verbose logger")
	}
}

func TestOpenFileCreatesDirAndFile(t *testing.T) {
	dir := t.TempDir() + "/logs"
	l, closeFn, err := OpenFile(dir, "12010-0", false)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer closeFn()
	l.Info("started")
}

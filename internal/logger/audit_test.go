package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAuditWritesLevelPrefixedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README")
	audit, err := NewAudit(path)
	if err != nil {
		t.Fatal(err)
	}

	audit.Infof("BIDS directory: %s", "/data/study")
	audit.Warnf("no fmap data found for subject %s", "sub-01")
	audit.Errorf("copy failed")
	if err := audit.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.Contains(content, "INFO: BIDS directory: /data/study\n") {
		t.Errorf("missing info line:\n%s", content)
	}
	if !strings.Contains(content, "WARNING: no fmap data found for subject sub-01\n") {
		t.Errorf("missing warning line:\n%s", content)
	}
	if !strings.Contains(content, "ERROR: copy failed\n") {
		t.Errorf("missing error line:\n%s", content)
	}
	if !strings.Contains(content, "INFO: Run ID: "+audit.RunID()) {
		t.Errorf("missing run header:\n%s", content)
	}
}

func TestAuditAppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README")

	first, err := NewAudit(path)
	if err != nil {
		t.Fatal(err)
	}
	first.Infof("first run")
	first.Close()

	second, err := NewAudit(path)
	if err != nil {
		t.Fatal(err)
	}
	second.Infof("second run")
	second.Close()

	if first.RunID() == second.RunID() {
		t.Error("run IDs should be unique per invocation")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "first run") || !strings.Contains(content, "second run") {
		t.Errorf("log is not append-only:\n%s", content)
	}
}

func TestAuditWriteAfterCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README")
	audit, err := NewAudit(path)
	if err != nil {
		t.Fatal(err)
	}
	audit.Close()
	audit.Infof("dropped") // must not panic

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "dropped") {
		t.Error("write after close should be discarded")
	}
}

package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	specs := []struct {
		in  string
		exp Level
	}{
		{"debug", Debug},
		{"INFO", Info},
		{" notice ", Notice},
		{"Warning", Warning},
		{"error", Error},
	}

	for _, spec := range specs {
		got, err := ParseLevel(spec.in)
		if err != nil {
			t.Fatalf("[%q] unexpected error: %v", spec.in, err)
		}
		if got != spec.exp {
			t.Fatalf("[%q] expected level %s; got %s", spec.in, spec.exp, got)
		}
	}

	expError := `log: unknown level "verbose"`
	if _, err := ParseLevel("verbose"); err == nil || err.Error() != expError {
		t.Fatalf("expected to get error %q; got %v", expError, err)
	}
}

func TestSinkAndLevel(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer func() {
		SetSink(os.Stdout)
		SetLevel(Notice)
	}()

	logger := New("test-module")

	SetLevel(Warning)
	logger.Info("hidden message")
	if buf.Len() != 0 {
		t.Fatalf("expected info message to be filtered at warning level; got %q", buf.String())
	}

	SetLevel(Debug)
	if GetLevel() != Debug {
		t.Fatalf("expected active level to be debug; got %s", GetLevel())
	}
	logger.Debugf("visible %d", 42)
	out := buf.String()
	if !strings.Contains(out, "[test-module]") || !strings.Contains(out, "visible 42") {
		t.Fatalf("expected output to contain module name and message; got %q", out)
	}
}

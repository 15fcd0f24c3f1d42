package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestLineReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLineReporter(&buf)
	r.Start(2)
	r.Update(1, "Embedding 営業")
	r.Update(2, "Embedding 開発")
	r.Finish()

	out := buf.String()
	for _, want := range []string{"for 2 topics", "[1/2] Embedding 営業", "[2/2] Embedding 開発", "complete"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestNewReporterInCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter().(*LineReporter); !ok {
		t.Error("expected LineReporter when CI is set")
	}
}

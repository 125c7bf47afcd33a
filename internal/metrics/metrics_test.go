package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestClassifiedCounts(t *testing.T) {
	r := New("llava")
	r.Classified("ok", 10*time.Millisecond)
	r.Classified("ok", 20*time.Millisecond)
	r.Classified("missing_class", time.Millisecond)

	if got := testutil.ToFloat64(r.classifyTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.classifyTotal.WithLabelValues("missing_class")); got != 1 {
		t.Errorf("missing_class = %v, want 1", got)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Classified("ok", time.Second)
	r.Downloaded("ok")
}

func TestWriteFile(t *testing.T) {
	r := New("llava")
	r.Classified("ok", time.Millisecond)
	r.Downloaded("error")

	path := filepath.Join(t.TempDir(), "imgclf.prom")
	if err := r.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		`imgclf_classify_total{model="llava",status="ok"} 1`,
		`imgclf_download_total{model="llava",status="error"} 1`,
		`imgclf_classify_duration_seconds_count{model="llava",status="ok"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

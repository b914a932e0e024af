package progress

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestCIReporterQuarters(t *testing.T) {
	var out bytes.Buffer
	rep := NewCIReporter(&out)

	src := strings.NewReader(strings.Repeat("x", 100))
	rep.Start(100, "upload")
	n, err := io.CopyBuffer(io.Discard, Reader(src, rep), make([]byte, 10))
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	rep.Finish()

	if n != 100 {
		t.Fatalf("copied %d bytes, want 100", n)
	}
	got := out.String()
	for _, want := range []string{"upload: 100 bytes", "upload: 25%", "upload: 50%", "upload: 75%", "upload: done (100 bytes)"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "%") != 3 {
		t.Errorf("expected exactly three quarter lines:\n%s", got)
	}
}

func TestWriterCountsBytes(t *testing.T) {
	var out, sink bytes.Buffer
	rep := NewCIReporter(&out)
	rep.Start(-1, "download")

	w := Writer(&sink, rep)
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	rep.Finish()

	if sink.String() != "hello" {
		t.Errorf("sink = %q", sink.String())
	}
	if !strings.Contains(out.String(), "done (5 bytes)") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestNilReporterPassesThrough(t *testing.T) {
	r := strings.NewReader("abc")
	if Reader(r, nil) != io.Reader(r) {
		t.Error("Reader with nil reporter should return the input")
	}
}

package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"subtrans/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subtrans.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestLast(t *testing.T) {
	path := writeLog(t, "a job_id=1\nb job_id=2\nc job_id=1\npartial")

	tests := []struct {
		name   string
		limit  int
		filter logs.Filter
		want   []string
	}{
		{name: "last two", limit: 2, want: []string{"b job_id=2", "c job_id=1"}},
		{name: "more than available", limit: 10, want: []string{"a job_id=1", "b job_id=2", "c job_id=1"}},
		{name: "filtered", limit: 5, filter: logs.Containing("job_id=1"), want: []string{"a job_id=1", "c job_id=1"}},
		{name: "zero limit", limit: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, err := logs.Reader{Path: path, Filter: tt.filter}.Last(tt.limit)
			if err != nil {
				t.Fatalf("Last: %v", err)
			}
			if len(chunk.Lines) != len(tt.want) {
				t.Fatalf("got %#v, want %#v", chunk.Lines, tt.want)
			}
			for i := range tt.want {
				if chunk.Lines[i] != tt.want[i] {
					t.Fatalf("got %#v, want %#v", chunk.Lines, tt.want)
				}
			}
			if chunk.Offset == 0 {
				t.Fatal("expected offset to advance")
			}
		})
	}
}

func TestSinceLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntw")
	reader := logs.Reader{Path: path}

	chunk, err := reader.Since(0)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Offset != 4 {
		t.Fatalf("unexpected chunk %#v", chunk)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = f.WriteString("o\n")
	f.Close()

	chunk, err = reader.Since(chunk.Offset)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "two" {
		t.Fatalf("unexpected lines %#v", chunk.Lines)
	}
}

func TestMissingFileIsEmpty(t *testing.T) {
	reader := logs.Reader{Path: filepath.Join(t.TempDir(), "absent.log")}
	chunk, err := reader.Last(5)
	if err != nil || len(chunk.Lines) != 0 {
		t.Fatalf("expected empty chunk, got %#v err=%v", chunk, err)
	}
}

func TestFollowDeliversNewLines(t *testing.T) {
	path := writeLog(t, "start\n")
	reader := logs.Reader{Path: path, Filter: logs.Containing("keep")}
	chunk, err := reader.Last(1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- reader.Follow(ctx, chunk.Offset, 10*time.Millisecond, func(lines []string) error {
			mu.Lock()
			got = append(got, lines...)
			mu.Unlock()
			cancel()
			return nil
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = f.WriteString("drop me\nkeep me\n")
	f.Close()

	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "keep me" {
		t.Fatalf("unexpected follow lines %#v", got)
	}
}

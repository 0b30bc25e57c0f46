package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Filter selects log lines. A nil Filter keeps everything.
type Filter func(line string) bool

// Containing keeps lines that mention every non-empty needle.
func Containing(needles ...string) Filter {
	var kept []string
	for _, n := range needles {
		if n = strings.TrimSpace(n); n != "" {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return func(line string) bool {
		for _, n := range kept {
			if !strings.Contains(line, n) {
				return false
			}
		}
		return true
	}
}

func (f Filter) keep(line string) bool {
	return f == nil || f(line)
}

// Chunk is a batch of lines and the offset just past them.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Reader reads one log file.
type Reader struct {
	Path   string
	Filter Filter
}

// Last returns the final limit matching lines and the end-of-file offset. A
// missing file yields an empty chunk.
func (r Reader) Last(limit int) (Chunk, error) {
	file, err := r.open()
	if err != nil || file == nil {
		return Chunk{}, err
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Chunk{}, fmt.Errorf("seek log file: %w", err)
		}
		return Chunk{Offset: end}, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	end, err := r.scan(file, func(line string) {
		ring[next] = line
		next = (next + 1) % limit
		count = min(count+1, limit)
	})
	if err != nil {
		return Chunk{}, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range count {
		lines = append(lines, ring[(start+i)%limit])
	}
	return Chunk{Lines: lines, Offset: end}, nil
}

// Since returns the matching lines written after offset. An offset past the
// end of the file (after truncation or rotation) restarts from the top.
func (r Reader) Since(offset int64) (Chunk, error) {
	file, err := r.open()
	if err != nil || file == nil {
		return Chunk{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Chunk{}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{}, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	consumed, err := r.scan(file, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{Lines: lines, Offset: offset + consumed}, nil
}

// Follow polls for new lines after offset and hands each non-empty chunk to
// fn until ctx is done.
func (r Reader) Follow(ctx context.Context, offset int64, interval time.Duration, fn func([]string) error) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		chunk, err := r.Since(offset)
		if err != nil {
			return err
		}
		offset = chunk.Offset
		if len(chunk.Lines) == 0 {
			continue
		}
		if err := fn(chunk.Lines); err != nil {
			return err
		}
	}
}

func (r Reader) open() (*os.File, error) {
	file, err := os.Open(r.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", r.Path)
	}
	return file, nil
}

// scan feeds complete matching lines to emit and returns the bytes consumed.
// A trailing partial line is left for the next read.
func (r Reader) scan(file *os.File, emit func(string)) (int64, error) {
	reader := bufio.NewReaderSize(file, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		line = strings.TrimRight(line, "\r\n")
		if r.Filter.keep(line) {
			emit(line)
		}
	}
}

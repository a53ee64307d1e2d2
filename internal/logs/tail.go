package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

const maxLineBytes = 1024 * 1024

// Filter reports whether a log line should be shown.
type Filter func(line string) bool

// StageFilter keeps lines emitted by stage in either log format: console
// lines carry "component/stage: ", JSON lines a "stage" field.
func StageFilter(stage string) Filter {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return nil
	}
	console := "/" + stage + ": "
	bare := " " + stage + ": "
	jsonField := `"stage":"` + stage + `"`
	return func(line string) bool {
		return strings.Contains(line, console) || strings.Contains(line, bare) || strings.Contains(line, jsonField)
	}
}

func keep(f Filter, line string) bool {
	return f == nil || f(line)
}

// Last returns up to n matching lines from the end of path and the offset
// just past the file's current end. A missing file yields no lines.
func Last(path string, n int, filter Filter) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, offset, nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	ring := make([]string, n)
	count, idx := 0, 0
	for scanner.Scan() {
		line := scanner.Text()
		if !keep(filter, line) {
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % n
		if count < n {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	lines := make([]string, count)
	start := 0
	if count == n {
		start = idx
	}
	for i := 0; i < count; i++ {
		lines[i] = ring[(start+i)%n]
	}
	return lines, offset, nil
}

// readFrom returns complete matching lines written after offset and the
// offset of the first unread byte. A trailing partial line stays unread.
func readFrom(path string, offset int64, filter Filter) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	var lines []string
	for {
		chunk, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return lines, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(chunk))
		line := strings.TrimRight(chunk, "\r\n")
		if keep(filter, line) {
			lines = append(lines, line)
		}
	}
	return lines, offset, nil
}

// Follow emits matching lines appended to path after offset until ctx ends.
func Follow(ctx context.Context, path string, offset int64, filter Filter, emit func(string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create log watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch log directory: %w", err)
	}
	name := filepath.Base(path)

	flush := func() error {
		lines, next, err := readFrom(path, offset, filter)
		offset = next
		for _, line := range lines {
			emit(line)
		}
		return err
	}
	// Catch lines written between Last and the watch registration.
	if err := flush(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := flush(); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("log watcher: %w", err)
		}
	}
}

package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"mediaagent/internal/logging"
)

const maxLineBytes = 1024 * 1024

// Record is one decoded log line. Lines that are not JSON keep only Raw.
type Record struct {
	Raw       string
	Time      time.Time
	Level     string
	Message   string
	Component string
	Cycle     string
	Fields    map[string]any
}

// ParseRecord decodes a line written by the JSON handler.
func ParseRecord(line string) Record {
	rec := Record{Raw: line}
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		return rec
	}
	take := func(key string) string {
		value, _ := payload[key].(string)
		delete(payload, key)
		return value
	}
	if ts := take("ts"); ts != "" {
		rec.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	rec.Level = take("level")
	rec.Message = take("msg")
	rec.Component = take(logging.FieldComponent)
	rec.Cycle = take(logging.FieldCorrelationID)
	rec.Fields = payload
	return rec
}

// Format renders a record as a single human-readable line.
func (r Record) Format() string {
	if r.Message == "" && r.Level == "" {
		return r.Raw
	}
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(r.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(r.Level))
	if r.Component != "" {
		fmt.Fprintf(&b, "[%s] ", r.Component)
	}
	b.WriteString(r.Message)
	keys := make([]string, 0, len(r.Fields))
	for key := range r.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, r.Fields[key])
	}
	if r.Cycle != "" {
		fmt.Fprintf(&b, " cycle=%s", r.Cycle)
	}
	return b.String()
}

// Filter selects records. Zero values match everything.
type Filter struct {
	Cycle     string
	Component string
	MinLevel  string
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec Record) bool {
	if f.Cycle != "" && !strings.HasPrefix(rec.Cycle, f.Cycle) {
		return false
	}
	if f.Component != "" && !strings.EqualFold(rec.Component, f.Component) {
		return false
	}
	if floor, ok := levelRank[strings.ToLower(f.MinLevel)]; ok {
		rank, known := levelRank[strings.ToLower(rec.Level)]
		if known && rank < floor {
			return false
		}
	}
	return true
}

// Last returns up to limit matching records from the end of path and the
// offset just past the data it read. A missing file yields no records.
func Last(path string, limit int, filter Filter) ([]Record, int64, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]Record, limit)
	count, idx := 0, 0
	offset, err := scan(file, 0, func(rec Record) {
		if !filter.Match(rec) {
			return
		}
		ring[idx] = rec
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	records := make([]Record, count)
	if count == limit {
		for i := 0; i < count; i++ {
			records[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(records, ring[:count])
	}
	return records, offset, nil
}

// Follow calls fn for every matching record appended after offset, polling
// every interval until ctx is done. A truncated file is read from the start.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, filter Filter, fn func(Record)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, filter, fn)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, filter Filter, fn func(Record)) (int64, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	return scan(file, offset, func(rec Record) {
		if filter.Match(rec) {
			fn(rec)
		}
	})
}

// scan reads complete lines from offset. A trailing partial line is left for
// the next read.
func scan(file *os.File, offset int64, visit func(Record)) (int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		visit(ParseRecord(line))
	}
}

func open(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// Package history records the bytes exchanged with the device so a session
// can be saved as a capture file
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// Direction represents the direction of data flow
type Direction int

const (
	// DirectionInput is data typed by the user and sent to the device
	DirectionInput Direction = iota
	// DirectionOutput is data received from the device
	DirectionOutput
)

// String returns the string representation of Direction
func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	default:
		return "unknown"
	}
}

// MarshalText encodes the direction by name
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// FileFormat represents different file export formats
type FileFormat int

const (
	FormatPlainText FileFormat = iota
	FormatTimestamped
	FormatJSON
)

// String returns the string representation of FileFormat
func (f FileFormat) String() string {
	switch f {
	case FormatPlainText:
		return "plain_text"
	case FormatTimestamped:
		return "timestamped"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat converts a command line name into a FileFormat
func ParseFormat(s string) (FileFormat, error) {
	switch strings.ToLower(s) {
	case "plain", "plain_text", "text", "txt":
		return FormatPlainText, nil
	case "timestamped", "ts", "log":
		return FormatTimestamped, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("unsupported capture format: %q (expected plain, timestamped or json)", s)
}

// Entry is a run of bytes flowing in one direction
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Direction Direction `json:"direction"`
	Data      []byte    `json:"-"`
	Length    int       `json:"length"`
}

// maxEntryLen caps how many bytes are merged into one entry
const maxEntryLen = 1024

// Recorder keeps the transcript of a session in memory. Consecutive writes in
// the same direction are merged into one entry until a newline is seen.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	maxSize int
	now     func() time.Time
}

// NewRecorder creates a recorder holding at most maxSize bytes; older entries
// are dropped first.
func NewRecorder(maxSize int) *Recorder {
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024 // Default 10MB
	}
	return &Recorder{
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Write adds data to the transcript
func (r *Recorder) Write(data []byte, direction Direction) error {
	if len(data) == 0 {
		return nil
	}
	if direction != DirectionInput && direction != DirectionOutput {
		return fmt.Errorf("invalid direction: %d", direction)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.entries); n > 0 {
		last := &r.entries[n-1]
		if last.Direction == direction && last.Length < maxEntryLen && last.Data[last.Length-1] != '\n' {
			last.Data = append(last.Data, data...)
			last.Length = len(last.Data)
			r.size += len(data)
			r.trim()
			return nil
		}
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	r.entries = append(r.entries, Entry{
		Timestamp: r.now(),
		Direction: direction,
		Data:      dataCopy,
		Length:    len(dataCopy),
	})
	r.size += len(data)
	r.trim()
	return nil
}

// trim drops the oldest entries until the transcript fits
func (r *Recorder) trim() {
	for r.size > r.maxSize && len(r.entries) > 1 {
		r.size -= r.entries[0].Length
		r.entries = r.entries[1:]
	}
}

// Entries returns a copy of the recorded entries
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

// Size returns the number of recorded bytes
func (r *Recorder) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Clear drops all entries
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.size = 0
}

// SaveToFile writes the transcript to filename in the given format
func (r *Recorder) SaveToFile(filename string, format FileFormat) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := r.Export(file, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Export writes the transcript to w.
//
// The plain format contains only what the device sent, with escape sequences
// removed. The timestamped format has one line per entry in both directions.
func (r *Recorder) Export(w io.Writer, format FileFormat) error {
	entries := r.Entries()

	bw := bufio.NewWriter(w)
	var err error
	switch format {
	case FormatPlainText:
		err = writePlainText(bw, entries)
	case FormatTimestamped:
		err = writeTimestamped(bw, entries)
	case FormatJSON:
		err = writeJSON(bw, entries)
	default:
		return fmt.Errorf("unsupported format: %v", format)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

func writePlainText(w io.Writer, entries []Entry) error {
	var sb strings.Builder
	for _, entry := range entries {
		if entry.Direction == DirectionOutput {
			sb.Write(entry.Data)
		}
	}
	if _, err := io.WriteString(w, ansi.Strip(sb.String())); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

func writeTimestamped(w io.Writer, entries []Entry) error {
	for _, entry := range entries {
		direction := "<<"
		if entry.Direction == DirectionOutput {
			direction = ">>"
		}

		quoted := strconv.Quote(string(entry.Data))
		line := fmt.Sprintf("[%s] %s %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05.000"),
			direction,
			quoted[1:len(quoted)-1])

		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("failed to write timestamped data: %w", err)
		}
	}
	return nil
}

type jsonEntry struct {
	Entry
	Text string `json:"data"`
}

func writeJSON(w io.Writer, entries []Entry) error {
	out := make([]jsonEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, jsonEntry{Entry: e, Text: string(e.Data)})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	data := struct {
		Entries []jsonEntry `json:"entries"`
		Count   int         `json:"count"`
	}{
		Entries: out,
		Count:   len(out),
	}

	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

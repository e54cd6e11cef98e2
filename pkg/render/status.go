package render

import "time"

// StatusTimeFormat is the timestamp layout of status lines
const StatusTimeFormat = "15:04:05.000"

// FormatStatus renders a status line as "[HH:MM:SS.mmm] msg"
func FormatStatus(t time.Time, msg string) string {
	return "[" + t.Format(StatusTimeFormat) + "] " + msg
}

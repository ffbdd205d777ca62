package gelf

import (
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"
)

// Writer sends GELF messages over UDP. It implements zapcore.WriteSyncer
// and expects one JSON-encoded log entry per Write.
type Writer struct {
	conn     net.Conn
	hostname string
	service  string
}

// New creates a GELF UDP writer connected to addr (e.g. "172.17.0.1:12201").
func New(addr, service string) (*Writer, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = service + "-server"
	}

	return &Writer{conn: conn, hostname: hostname, service: service}, nil
}

// Write converts one zap JSON line. Lines that are not JSON are sent
// verbatim as the short message.
func (w *Writer) Write(p []byte) (int, error) {
	payload, err := json.Marshal(w.message(p, time.Now()))
	if err != nil {
		return len(p), nil // don't fail the log call
	}

	// Fire-and-forget
	w.conn.Write(payload)
	return len(p), nil
}

// Sync is a no-op; UDP has nothing to flush.
func (w *Writer) Sync() error { return nil }

// Close releases the socket.
func (w *Writer) Close() error { return w.conn.Close() }

func (w *Writer) message(p []byte, now time.Time) map[string]any {
	line := strings.TrimRight(string(p), "\n")
	msg := map[string]any{
		"version":       "1.1",
		"host":          w.hostname,
		"short_message": line,
		"timestamp":     float64(now.UnixNano()) / 1e9,
		"level":         6, // Informational
		"_service":      w.service,
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return msg
	}
	for k, v := range entry {
		switch k {
		case "msg":
			msg["short_message"] = v
		case "level":
			lvl, _ := v.(string)
			msg["level"] = syslogLevel(lvl)
		case "ts":
			if s, ok := v.(string); ok {
				if t, err := time.Parse("2006-01-02T15:04:05.000Z0700", s); err == nil {
					msg["timestamp"] = float64(t.UnixNano()) / 1e9
				}
			}
		case "stacktrace":
			msg["full_message"] = v
		default:
			// GELF additional fields must be prefixed and may not be "_id".
			key := "_" + strings.ReplaceAll(k, ".", "_")
			if key == "_id" {
				key = "_id_"
			}
			msg[key] = v
		}
	}
	return msg
}

func syslogLevel(zapLevel string) int {
	switch zapLevel {
	case "debug":
		return 7
	case "warn":
		return 4 // Warning
	case "error":
		return 3 // Error
	case "dpanic", "panic", "fatal":
		return 2
	}
	return 6
}

package websocket

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// STOMP 1.2 commands used by the client and the broker.
const (
	CommandConnect     = "CONNECT"
	CommandConnected   = "CONNECTED"
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
	CommandSend        = "SEND"
	CommandMessage     = "MESSAGE"
	CommandReceipt     = "RECEIPT"
	CommandError       = "ERROR"
	CommandDisconnect  = "DISCONNECT"
)

type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

func NewFrame(command string, headers map[string]string, body []byte) Frame {
	if headers == nil {
		headers = map[string]string{}
	}
	return Frame{Command: command, Headers: headers, Body: body}
}

func (f Frame) Header(name string) string {
	return f.Headers[name]
}

// CONNECT and CONNECTED frames carry raw header values.
func escapesHeaders(command string) bool {
	return command != CommandConnect && command != CommandConnected
}

var (
	headerEscaper   = strings.NewReplacer("\\", "\\\\", "\r", "\\r", "\n", "\\n", ":", "\\c")
	headerUnescaper = strings.NewReplacer("\\r", "\r", "\\n", "\n", "\\c", ":", "\\\\", "\\")
)

// Encode renders f with sorted headers and the trailing NUL octet.
func (f Frame) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	keys := make([]string, 0, len(f.Headers))
	for k := range f.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	escape := escapesHeaders(f.Command)
	for _, k := range keys {
		v := f.Headers[k]
		if escape {
			k = headerEscaper.Replace(k)
			v = headerEscaper.Replace(v)
		}
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// ParseFrames decodes every frame in data. Heart-beat EOLs between frames
// are skipped, so a message holding only EOLs yields no frames.
func ParseFrames(data []byte) ([]Frame, error) {
	var frames []Frame
	for {
		data = bytes.TrimLeft(data, "\r\n")
		if len(data) == 0 {
			return frames, nil
		}

		f, rest, err := parseFrame(data)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		data = rest
	}
}

func parseFrame(data []byte) (Frame, []byte, error) {
	headerEnd := bytes.Index(data, []byte("\n\n"))
	sepLen := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (headerEnd < 0 || crlf < headerEnd) {
		headerEnd, sepLen = crlf, 4
	}
	if headerEnd < 0 {
		return Frame{}, nil, fmt.Errorf("stomp: incomplete frame header")
	}

	lines := strings.Split(strings.ReplaceAll(string(data[:headerEnd]), "\r\n", "\n"), "\n")
	f := NewFrame(lines[0], nil, nil)
	if f.Command == "" {
		return Frame{}, nil, fmt.Errorf("stomp: missing command")
	}

	escape := escapesHeaders(f.Command)
	for _, line := range lines[1:] {
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return Frame{}, nil, fmt.Errorf("stomp: malformed header %q", line)
		}
		k, v := line[:idx], line[idx+1:]
		if escape {
			k = headerUnescaper.Replace(k)
			v = headerUnescaper.Replace(v)
		}
		// repeated headers: the first one wins
		if _, seen := f.Headers[k]; !seen {
			f.Headers[k] = v
		}
	}

	body := data[headerEnd+sepLen:]
	if cl, ok := f.Headers["content-length"]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return Frame{}, nil, fmt.Errorf("stomp: invalid content-length %q", cl)
		}
		if len(body) < n+1 || body[n] != 0 {
			return Frame{}, nil, fmt.Errorf("stomp: truncated body")
		}
		f.Body = append([]byte(nil), body[:n]...)
		return f, body[n+1:], nil
	}

	end := bytes.IndexByte(body, 0)
	if end < 0 {
		return Frame{}, nil, fmt.Errorf("stomp: missing frame terminator")
	}
	f.Body = append([]byte(nil), body[:end]...)
	return f, body[end+1:], nil
}

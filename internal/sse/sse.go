// Package sse decodes Server-Sent Events frames from a byte stream.
package sse

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// DefaultType is the event type used when a frame has no "event:" field.
const DefaultType = "message"

// Frame is one dispatched Server-Sent Event.
type Frame struct {
	Type  string
	Data  string
	ID    string
	Retry int // -1 when the frame carried no valid retry field
}

// Decoder reads frames from an io.Reader.
type Decoder struct {
	r    *bufio.Reader
	done bool

	eventType string
	data      []string
	hasData   bool
	id        string
	retry     int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 4096), retry: -1}
}

// Next returns the next frame, or io.EOF once the stream is exhausted.
// A frame still being assembled when the stream ends is dispatched.
func (d *Decoder) Next() (Frame, error) {
	if d.done {
		return Frame{}, io.EOF
	}

	for {
		line, err := d.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.done = true
				if d.hasData {
					return d.dispatch(), nil
				}
				return Frame{}, io.EOF
			}
			return Frame{}, err
		}

		if line == "" {
			if !d.hasData {
				continue
			}
			return d.dispatch(), nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			d.eventType = value
		case "data":
			d.data = append(d.data, value)
			d.hasData = true
		case "id":
			d.id = value
		case "retry":
			if n, err := strconv.Atoi(value); err == nil {
				d.retry = n
			}
		}
	}
}

func (d *Decoder) dispatch() Frame {
	f := Frame{
		Type:  d.eventType,
		Data:  strings.Join(d.data, "\n"),
		ID:    d.id,
		Retry: d.retry,
	}
	if f.Type == "" {
		f.Type = DefaultType
	}
	d.eventType = ""
	d.data = nil
	d.hasData = false
	d.id = ""
	d.retry = -1
	return f
}

// splitField splits "field: value", stripping one leading space from value.
func splitField(line string) (string, string) {
	i := strings.IndexByte(line, ':')
	if i == -1 {
		return line, ""
	}
	value := line[i+1:]
	if strings.HasPrefix(value, " ") {
		value = value[1:]
	}
	return line[:i], value
}

// readLine reads up to CR, LF or CRLF and strips the terminator.
func (d *Decoder) readLine() (string, error) {
	var b strings.Builder
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
		switch c {
		case '\n':
			return b.String(), nil
		case '\r':
			if next, err := d.r.ReadByte(); err == nil && next != '\n' {
				_ = d.r.UnreadByte()
			}
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
}

// Encode renders data as a single "data:" frame terminated by a blank line.
// Multi-line data is split across several data fields.
func Encode(data string) string {
	var b strings.Builder
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

package unbag

import (
	"errors"
	"fmt"
	"time"

	"github.com/ssargent/unbag/pkg/msgs"
)

// ErrContainer wraps every fatal container failure.
var ErrContainer = errors.New("container error")

// Message is one decoded record with its routing metadata. Time is
// nanoseconds since the epoch.
type Message struct {
	Conn   uint32   `json:"conn"`
	Topic  string   `json:"topic,omitempty"`
	Schema string   `json:"schema,omitempty"`
	Time   uint64   `json:"time"`
	Data   msgs.Msg `json:"data"`
}

// Timestamp returns Time as a time.Time in UTC.
func (m *Message) Timestamp() time.Time {
	return time.Unix(0, int64(m.Time)).UTC()
}

// RecordError reports a record whose payload did not decode against its
// schema. Err wraps the codec error.
type RecordError struct {
	Conn   uint32
	Topic  string
	Schema string
	Time   uint64
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("decode %s record on %s (conn %d) at %d: %v", e.Schema, e.Topic, e.Conn, e.Time, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

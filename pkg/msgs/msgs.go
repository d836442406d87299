// Package msgs holds the record catalog: the mapping from a connection's
// schema name to the shape its payload is decoded with and the binding that
// turns the decoded struct into a typed message.
package msgs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ssargent/unbag/pkg/codec"
)

var (
	ErrUnknownSchema   = errors.New("unknown schema")
	ErrDuplicateSchema = errors.New("schema already registered")
)

// Msg is a decoded record. Every variant reports the schema it was decoded as.
type Msg interface {
	Schema() string
}

// Encodable is a message that can be turned back into its wire struct.
type Encodable interface {
	Msg
	Struct() *codec.Struct
}

// Marshal encodes m in the wire format the catalog decodes.
func Marshal(m Msg) ([]byte, error) {
	e, ok := m.(Encodable)
	if !ok {
		return nil, fmt.Errorf("%w: %T cannot be encoded", ErrUnknownSchema, m)
	}
	return codec.Encode(e.Struct())
}

// Reason says why a record was not decoded.
type Reason string

const (
	// ReasonUnknownChannel means the record's connection id is not in the routing table.
	ReasonUnknownChannel Reason = "unknown channel"
	// ReasonUnknownSchema means the connection's schema has no catalog entry.
	ReasonUnknownSchema Reason = "unknown schema"
)

// Unrecognized stands in for a record the catalog cannot decode. It is not an error.
type Unrecognized struct {
	Conn       uint32 `json:"conn"`
	SchemaName string `json:"schema,omitempty"`
	Reason     Reason `json:"reason"`
}

func (u Unrecognized) Schema() string {
	return u.SchemaName
}

func (u Unrecognized) String() string {
	if u.SchemaName == "" {
		return fmt.Sprintf("unrecognized record on connection %d: %s", u.Conn, u.Reason)
	}
	return fmt.Sprintf("unrecognized %s record on connection %d: %s", u.SchemaName, u.Conn, u.Reason)
}

// Dynamic is a message registered without a typed binding. Value keeps the
// decoded struct as is.
type Dynamic struct {
	Value *codec.Struct
}

func (d *Dynamic) Schema() string {
	if d == nil || d.Value == nil || d.Value.Shape() == nil {
		return ""
	}
	return d.Value.Shape().Name
}

func (d *Dynamic) Struct() *codec.Struct {
	return d.Value
}

// MarshalJSON renders the struct as a plain object.
func (d *Dynamic) MarshalJSON() ([]byte, error) {
	if d.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.Value.Map())
}

// mustStruct builds the wire struct of a typed message. The value count is
// fixed by the message type, so an arity mismatch is a programming error.
func mustStruct(shape *codec.Shape, values ...any) *codec.Struct {
	s, err := codec.NewStruct(shape, values...)
	if err != nil {
		panic(err)
	}
	return s
}

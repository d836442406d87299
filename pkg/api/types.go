package api

import (
	"github.com/ssargent/unbag/pkg/msgs"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string
	BagDir string // Directory the served bags are read from
}

// BagSummary describes one bag in the served directory
type BagSummary struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	Connections int    `json:"connections"`
	Chunks      int    `json:"chunks"`
	Messages    uint64 `json:"messages"`
}

// MessageRecord is one decoded record. Error is set instead of Data when
// the payload did not decode.
type MessageRecord struct {
	Conn   uint32   `json:"conn"`
	Topic  string   `json:"topic,omitempty"`
	Schema string   `json:"schema,omitempty"`
	Time   uint64   `json:"time"`
	Data   msgs.Msg `json:"data,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// MessagesResponse is a page of records from the start of a bag
type MessagesResponse struct {
	Bag       string          `json:"bag"`
	Messages  []MessageRecord `json:"messages"`
	Truncated bool            `json:"truncated"`
}

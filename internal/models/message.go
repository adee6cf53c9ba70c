package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// ISOTimeLayout matches JavaScript's Date.prototype.toISOString.
const ISOTimeLayout = "2006-01-02T15:04:05.000Z"

var ErrInvalidItem = errors.New("invalid item")

// Message is an open JSON object. Only "id" and "createTime" are
// interpreted; every other member is kept verbatim.
type Message map[string]json.RawMessage

// MessageFromJSON maps a request body onto a Message. The body must be a
// JSON object with a non-empty string "id".
func MessageFromJSON(body []byte) (Message, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidItem
	}

	var m Message
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, ErrInvalidItem
	}
	if m.ID() == "" {
		return nil, ErrInvalidItem
	}
	return m, nil
}

// ID returns the message id, or "" when it is missing or not a string.
func (m Message) ID() string {
	raw, ok := m["id"]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}

func (m Message) CreateTime() string {
	raw, ok := m["createTime"]
	if !ok {
		return ""
	}
	var ts string
	if err := json.Unmarshal(raw, &ts); err != nil {
		return ""
	}
	return ts
}

// Stamp sets createTime to t in UTC with millisecond precision, replacing
// any caller-supplied value.
func (m Message) Stamp(t time.Time) {
	ts, _ := json.Marshal(FormatTime(t))
	m["createTime"] = ts
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(ISOTimeLayout)
}

// PeekID extracts "id" from a stored value without decoding the rest.
func PeekID(value []byte) string {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(value, &head); err != nil {
		return ""
	}
	return head.ID
}

// Copyright 2024 Alexandre Mahdhaoui
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package notification decodes versioned lifecycle notifications published by
// the bare-metal service on its message bus.
package notification

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// ObjectDataKey is the payload key holding the versioned object's fields.
	ObjectDataKey = "ironic_object.data"
	// ObjectNameKey is the payload key holding the versioned object's type name.
	ObjectNameKey = "ironic_object.name"

	// DefaultIDField is the object field carrying a resource's identifier.
	DefaultIDField = "uuid"

	envelopeVersionKey = "oslo.version"
	envelopeMessageKey = "oslo.message"
)

var (
	// ErrMalformed indicates a message body that is not a notification.
	ErrMalformed = errors.New("malformed notification")
	// ErrMissingEventType indicates a notification without an event type.
	ErrMissingEventType = errors.New("notification has no event_type")
)

// Notification is a single lifecycle event record.
type Notification struct {
	MessageID   string         `json:"message_id,omitempty"`
	PublisherID string         `json:"publisher_id,omitempty"`
	EventType   string         `json:"event_type"`
	Priority    string         `json:"priority,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Payload     map[string]any `json:"payload"`
}

// Decode parses a message body into a Notification.
//
// Both the messaging envelope ({"oslo.version": ..., "oslo.message": "<json>"})
// and a bare notification object are accepted.
func Decode(body []byte) (*Notification, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if inner, ok := raw[envelopeMessageKey]; ok {
		if _, versioned := raw[envelopeVersionKey]; !versioned {
			return nil, fmt.Errorf("%w: envelope without %s", ErrMalformed, envelopeVersionKey)
		}

		var msg string
		if err := json.Unmarshal(inner, &msg); err != nil {
			return nil, fmt.Errorf("%w: envelope message is not a string: %v", ErrMalformed, err)
		}
		body = []byte(msg)
	}

	n := &Notification{}
	if err := json.Unmarshal(body, n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n.EventType == "" {
		return nil, ErrMissingEventType
	}

	return n, nil
}

// ObjectData returns the versioned object's fields carried in the payload.
func (n *Notification) ObjectData() (map[string]any, bool) {
	if n.Payload == nil {
		return nil, false
	}
	data, ok := n.Payload[ObjectDataKey].(map[string]any)
	return data, ok
}

// ObjectName returns the versioned object's type name, e.g. "NodePayload".
func (n *Notification) ObjectName() string {
	if n.Payload == nil {
		return ""
	}
	name, _ := n.Payload[ObjectNameKey].(string)
	return name
}

// ResourceID returns the identifier stored under field in the payload's
// object data. The second return value is false when it is absent or not a
// string.
func (n *Notification) ResourceID(field string) (string, bool) {
	data, ok := n.ObjectData()
	if !ok {
		return "", false
	}
	id, ok := data[field].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Encode wraps a notification in the messaging envelope, the format the
// service publishes on the wire.
func Encode(n *Notification) ([]byte, error) {
	inner, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshaling notification: %w", err)
	}

	return json.Marshal(map[string]string{
		envelopeVersionKey: "2.0",
		envelopeMessageKey: string(inner),
	})
}

// NewVersioned builds a notification whose payload carries object fields in
// the versioned-object layout.
func NewVersioned(eventType, objectName string, data map[string]any) *Notification {
	return &Notification{
		EventType:   eventType,
		PublisherID: "ironic-api",
		Priority:    "INFO",
		Payload: map[string]any{
			ObjectNameKey:             objectName,
			"ironic_object.namespace": "ironic",
			ObjectDataKey:             data,
		},
	}
}

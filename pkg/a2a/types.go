// Package a2a contains the wire types and HTTP client for talking to remote
// A2A agents: submitting tasks, fetching them back, canceling them, and
// registering push-notification callbacks.
package a2a

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskState represents the possible states of a remote task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateUnknown       TaskState = "unknown"
)

// Task represents the state and data associated with a remote agent task.
type Task struct {
	ID        string         `json:"id"`
	SessionID *string        `json:"sessionId,omitempty"`
	Status    TaskStatus     `json:"status"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TaskStatus represents the current status of a task as reported by the
// remote agent.
type TaskStatus struct {
	State     TaskState  `json:"state"`
	Message   *Message   `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Message represents a single message in a task conversation.
type Message struct {
	Role     string         `json:"role"` // "user" or "agent"
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Part is a component of a message or artifact. It is a tagged union over
// text, file, and structured-data content; consumers switch on Type rather
// than probing fields.
type Part struct {
	Type     string         `json:"type"` // "text", "file", or "data"
	Text     *string        `json:"text,omitempty"`
	File     *FileContent   `json:"file,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UnmarshalJSON validates that the tagged variant carries its payload field.
func (p *Part) UnmarshalJSON(data []byte) error {
	type partAlias Part
	var temp struct {
		Type string `json:"type"`
		*partAlias
	}
	temp.partAlias = (*partAlias)(p)

	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	switch temp.Type {
	case "text":
		if temp.Text == nil {
			return fmt.Errorf("text part missing 'text' field")
		}
	case "file":
		if temp.File == nil {
			return fmt.Errorf("file part missing 'file' field")
		}
	case "data":
		if temp.Data == nil {
			return fmt.Errorf("data part missing 'data' field")
		}
	default:
		return fmt.Errorf("unknown part type: %s", temp.Type)
	}

	// The alias shares p's payload fields but not Type, which the temp
	// struct shadows for validation; copy it back explicitly.
	p.Type = temp.Type
	return nil
}

// NewTextPart builds a text part from a string.
func NewTextPart(text string) Part {
	return Part{Type: "text", Text: &text}
}

// FileContent represents the content of a file, either inline or via URI.
type FileContent struct {
	Name     *string `json:"name,omitempty"`
	MimeType *string `json:"mimeType,omitempty"`
	Bytes    *string `json:"bytes,omitempty"` // Base64 encoded content
	URI      *string `json:"uri,omitempty"`
}

// Artifact represents a piece of output produced by a task.
type Artifact struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Index       int            `json:"index,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CollectText concatenates the text parts of all artifacts, in order.
// File and data parts are skipped.
func CollectText(artifacts []Artifact) string {
	var b strings.Builder
	for _, artifact := range artifacts {
		for _, part := range artifact.Parts {
			if part.Type == "text" && part.Text != nil {
				b.WriteString(*part.Text)
			}
		}
	}
	return b.String()
}

// PushNotificationConfig defines where and how the remote agent should
// deliver asynchronous task updates.
type PushNotificationConfig struct {
	URL   string  `json:"url"`
	Token *string `json:"token,omitempty"`
}

// TaskPushNotificationConfig associates a task ID with its push settings.
type TaskPushNotificationConfig struct {
	ID                     string                 `json:"id"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// TaskIdParams provides parameters containing just a task ID.
type TaskIdParams struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskQueryParams provides parameters for querying a task.
type TaskQueryParams struct {
	ID            string         `json:"id"`
	HistoryLength *int           `json:"historyLength,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// TaskSendParams provides parameters for submitting a message as a new task.
type TaskSendParams struct {
	ID               string                  `json:"id"`
	SessionID        *string                 `json:"sessionId,omitempty"`
	Message          Message                 `json:"message"`
	PushNotification *PushNotificationConfig `json:"pushNotification,omitempty"`
	Metadata         map[string]any          `json:"metadata,omitempty"`
}

// EventStatus is the status payload of a push-delivered status update. Unlike
// TaskStatus, the message here is plain text: push events never carry result
// content, only a human-readable note.
type EventStatus struct {
	State   TaskState `json:"state"`
	Message *string   `json:"message,omitempty"`
}

// TaskStatusUpdateEvent is an asynchronous status change delivered by the
// push-notification provider to a registered callback endpoint.
type TaskStatusUpdateEvent struct {
	ID     string      `json:"id"`
	Status EventStatus `json:"status"`
	Final  bool        `json:"final,omitempty"`
}

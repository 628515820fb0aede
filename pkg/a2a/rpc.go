package a2a

import "fmt"

// JSONRPCError represents a standard JSON-RPC error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface for JSONRPCError.
func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// SendTaskRequest is a JSON-RPC request to submit a message as a new task.
type SendTaskRequest struct {
	JSONRPC string         `json:"jsonrpc"` // "2.0"
	ID      any            `json:"id,omitempty"`
	Method  string         `json:"method"` // "tasks/send"
	Params  TaskSendParams `json:"params"`
}

// SendTaskResponse is a JSON-RPC response for a send task request.
type SendTaskResponse struct {
	JSONRPC string        `json:"jsonrpc,omitempty"`
	ID      any           `json:"id"`
	Result  *Task         `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// GetTaskRequest is a JSON-RPC request to retrieve task details.
type GetTaskRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"` // "tasks/get"
	Params  TaskQueryParams `json:"params"`
}

// GetTaskResponse is a JSON-RPC response containing task details.
type GetTaskResponse struct {
	JSONRPC string        `json:"jsonrpc,omitempty"`
	ID      any           `json:"id"`
	Result  *Task         `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// CancelTaskRequest is a JSON-RPC request to cancel a task.
type CancelTaskRequest struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      any          `json:"id,omitempty"`
	Method  string       `json:"method"` // "tasks/cancel"
	Params  TaskIdParams `json:"params"`
}

// CancelTaskResponse is a JSON-RPC response for a cancel task request.
type CancelTaskResponse struct {
	JSONRPC string        `json:"jsonrpc,omitempty"`
	ID      any           `json:"id"`
	Result  *Task         `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// SetTaskPushNotificationRequest is a JSON-RPC request to register push
// notification settings for a task.
type SetTaskPushNotificationRequest struct {
	JSONRPC string                     `json:"jsonrpc"`
	ID      any                        `json:"id,omitempty"`
	Method  string                     `json:"method"` // "tasks/pushNotification/set"
	Params  TaskPushNotificationConfig `json:"params"`
}

// SetTaskPushNotificationResponse is a JSON-RPC response for registering push
// notification settings.
type SetTaskPushNotificationResponse struct {
	JSONRPC string                      `json:"jsonrpc,omitempty"`
	ID      any                         `json:"id"`
	Result  *TaskPushNotificationConfig `json:"result,omitempty"`
	Error   *JSONRPCError               `json:"error,omitempty"`
}

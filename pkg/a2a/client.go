package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ClientConfig holds configuration for the A2A client.
type ClientConfig struct {
	// Timeout for HTTP requests
	Timeout time.Duration
	// Custom HTTP client (optional)
	HTTPClient *http.Client
	// Additional headers to include in requests
	Headers map[string]string
}

// DefaultClientConfig returns a default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout: 600 * time.Second, // 10 minutes default
		Headers: make(map[string]string),
	}
}

// Client is an A2A client bound to a single remote agent endpoint.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	endpoint   string
}

// NewClient creates a new A2A client for the given endpoint URL.
func NewClient(endpoint string, config *ClientConfig) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config == nil {
		config = DefaultClientConfig()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		endpoint:   endpoint,
	}, nil
}

// SendTask submits a message as a new task and returns the synchronous
// submission response.
func (c *Client) SendTask(ctx context.Context, params *TaskSendParams) (*Task, error) {
	request := &SendTaskRequest{
		JSONRPC: "2.0",
		ID:      generateRequestID(),
		Method:  "tasks/send",
		Params:  *params,
	}

	var response SendTaskResponse
	if err := c.sendJSONRPCRequest(ctx, request, &response); err != nil {
		return nil, fmt.Errorf("failed to send task: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("A2A error %d: %s", response.Error.Code, response.Error.Message)
	}

	return response.Result, nil
}

// GetTask retrieves task details by ID.
func (c *Client) GetTask(ctx context.Context, params *TaskQueryParams) (*Task, error) {
	request := &GetTaskRequest{
		JSONRPC: "2.0",
		ID:      generateRequestID(),
		Method:  "tasks/get",
		Params:  *params,
	}

	var response GetTaskResponse
	if err := c.sendJSONRPCRequest(ctx, request, &response); err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("A2A error %d: %s", response.Error.Code, response.Error.Message)
	}

	return response.Result, nil
}

// CancelTask cancels a task by ID.
func (c *Client) CancelTask(ctx context.Context, params *TaskIdParams) (*Task, error) {
	request := &CancelTaskRequest{
		JSONRPC: "2.0",
		ID:      generateRequestID(),
		Method:  "tasks/cancel",
		Params:  *params,
	}

	var response CancelTaskResponse
	if err := c.sendJSONRPCRequest(ctx, request, &response); err != nil {
		return nil, fmt.Errorf("failed to cancel task: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("A2A error %d: %s", response.Error.Code, response.Error.Message)
	}

	return response.Result, nil
}

// SetTaskPushNotification registers push notification settings for a task.
func (c *Client) SetTaskPushNotification(ctx context.Context, config *TaskPushNotificationConfig) (*TaskPushNotificationConfig, error) {
	request := &SetTaskPushNotificationRequest{
		JSONRPC: "2.0",
		ID:      generateRequestID(),
		Method:  "tasks/pushNotification/set",
		Params:  *config,
	}

	var response SetTaskPushNotificationResponse
	if err := c.sendJSONRPCRequest(ctx, request, &response); err != nil {
		return nil, fmt.Errorf("failed to set push notification: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("A2A error %d: %s", response.Error.Code, response.Error.Message)
	}

	return response.Result, nil
}

// sendJSONRPCRequest sends a JSON-RPC request and unmarshals the response.
func (c *Client) sendJSONRPCRequest(ctx context.Context, request any, response any) error {
	reqBody, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range c.config.Headers {
		httpReq.Header.Set(key, value)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return fmt.Errorf("HTTP error %d: %s", httpResp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(respBody, response); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// generateRequestID generates a unique request ID.
func generateRequestID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}

// ClientFactory derives a client for a specific remote agent. Each call
// produces a fresh client so concurrent requests never share connections.
type ClientFactory struct {
	// EndpointTemplate is the agent endpoint URL with an "{agent}"
	// placeholder, e.g. "https://host/workflows/a2a/agents/{agent}".
	EndpointTemplate string
	Config           *ClientConfig
}

// NewClientFactory creates a factory producing clients from the endpoint
// template.
func NewClientFactory(endpointTemplate string, config *ClientConfig) (*ClientFactory, error) {
	if endpointTemplate == "" {
		return nil, fmt.Errorf("endpoint template cannot be empty")
	}
	return &ClientFactory{
		EndpointTemplate: endpointTemplate,
		Config:           config,
	}, nil
}

// ClientFor returns a client bound to the given agent's endpoint.
func (f *ClientFactory) ClientFor(agentID string) (*Client, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent ID cannot be empty")
	}
	endpoint := strings.ReplaceAll(f.EndpointTemplate, "{agent}", agentID)
	return NewClient(endpoint, f.Config)
}

// Package relay implements the task lifecycle reconciler: it submits tasks to
// remote agents, tracks them in a session-scoped store, applies push-delivered
// status events, and serves destructive result reads.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/agent-protocol/a2a-relay/pkg/a2a"
	"github.com/agent-protocol/a2a-relay/pkg/tasks"
)

// inputRequiredMessage is stored when a remote task asks for more input.
// Interactive continuation is not supported, so the task is finalized with
// this text and a best-effort cancel is issued.
const inputRequiredMessage = "Error! The remote agent requested additional input; interactive continuation is not supported."

// canceledMessage is stored when the caller cancels a task through the relay.
const canceledMessage = "Error! The task was canceled."

// TaskClient is the remote task contract the reconciler consumes.
type TaskClient interface {
	SendTask(ctx context.Context, params *a2a.TaskSendParams) (*a2a.Task, error)
	GetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error)
	CancelTask(ctx context.Context, params *a2a.TaskIdParams) (*a2a.Task, error)
	SetTaskPushNotification(ctx context.Context, config *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error)
}

// ClientFactory derives a client scoped to one remote agent. Every handler
// invocation gets its own client; clients are never pooled across requests.
type ClientFactory interface {
	ClientFor(agentID string) (TaskClient, error)
}

// ClientFactoryFunc adapts a function to the ClientFactory interface.
type ClientFactoryFunc func(agentID string) (TaskClient, error)

// ClientFor calls f.
func (f ClientFactoryFunc) ClientFor(agentID string) (TaskClient, error) {
	return f(agentID)
}

// ServiceConfig contains configuration for the reconciler service.
type ServiceConfig struct {
	// CallbackURL is the externally reachable URL of this relay's
	// push-callback endpoint. Empty disables callback registration.
	CallbackURL string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Service is the task lifecycle reconciler.
type Service struct {
	clients     ClientFactory
	store       tasks.Store
	callbackURL string
	watcher     *Watcher
	logger      *slog.Logger
}

// NewService creates a reconciler over the given client factory and store.
func NewService(clients ClientFactory, store tasks.Store, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		clients:     clients,
		store:       store,
		callbackURL: config.CallbackURL,
		watcher:     NewWatcher(),
		logger:      logger,
	}
}

// Watcher returns the update feed for live task observation.
func (s *Service) Watcher() *Watcher {
	return s.watcher
}

// CreateTask submits userMessage as a new task for the given agent and
// tracks it under the session. It returns the remote-assigned task ID whether
// the task resolved synchronously or will complete via push callback.
func (s *Service) CreateTask(ctx context.Context, sessionID, agentID, userMessage string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("%w: session is required", ErrValidation)
	}
	if agentID == "" || userMessage == "" {
		return "", fmt.Errorf("%w: agentId and message are required", ErrValidation)
	}

	client, err := s.clients.ClientFor(agentID)
	if err != nil {
		return "", &RemoteError{Op: "submit", Err: err}
	}

	params := &a2a.TaskSendParams{
		ID: uuid.NewString(),
		Message: a2a.Message{
			Role:  "user",
			Parts: []a2a.Part{a2a.NewTextPart(userMessage)},
		},
	}

	task, err := client.SendTask(ctx, params)
	if err != nil {
		return "", &RemoteError{Op: "submit", Err: err}
	}
	if task == nil {
		return "", &RemoteError{Op: "submit", Err: errors.New("empty submission response")}
	}
	if task.Status.State == a2a.TaskStateFailed {
		return "", &TaskFailedError{TaskID: task.ID}
	}

	record := &tasks.Record{
		AgentID: agentID,
		IsFinal: task.Status.State == a2a.TaskStateCompleted,
	}
	if text := a2a.CollectText(task.Artifacts); text != "" {
		record.Message = &text
	}

	if err := s.store.Put(ctx, sessionID, task.ID, record); err != nil {
		return "", fmt.Errorf("failed to store task record: %w", err)
	}
	s.watcher.Publish(sessionID, task.ID, record)

	s.registerCallback(ctx, client, sessionID, task.ID)

	return task.ID, nil
}

// registerCallback registers this relay's push endpoint for the task.
// Best-effort: failures are logged and discarded.
func (s *Service) registerCallback(ctx context.Context, client TaskClient, sessionID, taskID string) {
	if s.callbackURL == "" {
		return
	}
	callback := s.callbackURL + "?session=" + url.QueryEscape(sessionID)
	_, err := client.SetTaskPushNotification(ctx, &a2a.TaskPushNotificationConfig{
		ID:                     taskID,
		PushNotificationConfig: a2a.PushNotificationConfig{URL: callback},
	})
	if err != nil {
		s.logger.Warn("push callback registration failed",
			"task_id", taskID,
			"error", err)
	}
}

// Reconcile applies a push-delivered status event to the session's record of
// the task. Applying the same terminal event twice yields the same stored
// record; there is no sequence check, so out-of-order delivery of different
// events resolves last-write-wins.
func (s *Service) Reconcile(ctx context.Context, sessionID string, event *a2a.TaskStatusUpdateEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("%w: event task id is required", ErrValidation)
	}

	record, err := s.store.Get(ctx, sessionID, event.ID)
	if err != nil {
		return fmt.Errorf("failed to load task record: %w", err)
	}
	if record == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTask, event.ID)
	}

	switch event.Status.State {
	case a2a.TaskStateCompleted:
		// The push event carries no result content; re-fetch the task.
		client, err := s.clients.ClientFor(record.AgentID)
		if err != nil {
			return &RemoteError{Op: "get", Err: err}
		}
		task, err := client.GetTask(ctx, &a2a.TaskQueryParams{ID: event.ID})
		if err != nil {
			return &RemoteError{Op: "get", Err: err}
		}
		record.Message = nil
		if task != nil {
			if text := a2a.CollectText(task.Artifacts); text != "" {
				record.Message = &text
			}
		}
		record.IsFinal = event.Final

	case a2a.TaskStateFailed:
		msg := fmt.Sprintf("Error! Message: %s", stringValue(event.Status.Message))
		record.Message = &msg
		record.IsFinal = event.Final

	case a2a.TaskStateInputRequired:
		msg := inputRequiredMessage
		record.Message = &msg
		record.IsFinal = true
		s.cancelRemote(ctx, record.AgentID, event.ID)

	default:
		// No transition is defined for other states; leave the record as is.
		s.logger.Debug("ignoring status update",
			"task_id", event.ID,
			"state", event.Status.State)
		return nil
	}

	if err := s.store.Put(ctx, sessionID, event.ID, record); err != nil {
		return fmt.Errorf("failed to store task record: %w", err)
	}
	s.watcher.Publish(sessionID, event.ID, record)
	return nil
}

// Lookup returns a snapshot of the task record without clearing it.
func (s *Service) Lookup(ctx context.Context, sessionID, taskID string) (*tasks.Record, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: taskId is required", ErrValidation)
	}

	record, err := s.store.Get(ctx, sessionID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return record, nil
}

// FetchAndClear returns a snapshot of the task record and removes it from the
// store in one atomic step. Of any number of concurrent fetches for the same
// task, at most one succeeds; the rest report not-found.
func (s *Service) FetchAndClear(ctx context.Context, sessionID, taskID string) (*tasks.Record, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: taskId is required", ErrValidation)
	}

	record, err := s.store.Take(ctx, sessionID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return record, nil
}

// CancelTask issues a best-effort cancel to the remote agent and finalizes
// the local record. Already-final records are returned unchanged.
func (s *Service) CancelTask(ctx context.Context, sessionID, taskID string) (*tasks.Record, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: taskId is required", ErrValidation)
	}

	record, err := s.store.Get(ctx, sessionID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if record.IsFinal {
		return record, nil
	}

	s.cancelRemote(ctx, record.AgentID, taskID)

	msg := canceledMessage
	record.Message = &msg
	record.IsFinal = true
	if err := s.store.Put(ctx, sessionID, taskID, record); err != nil {
		return nil, fmt.Errorf("failed to store task record: %w", err)
	}
	s.watcher.Publish(sessionID, taskID, record)
	return record, nil
}

// cancelRemote attempts to cancel the task on the remote agent. Best-effort:
// the outcome is logged and never surfaced.
func (s *Service) cancelRemote(ctx context.Context, agentID, taskID string) {
	client, err := s.clients.ClientFor(agentID)
	if err == nil {
		_, err = client.CancelTask(ctx, &a2a.TaskIdParams{ID: taskID})
	}
	if err != nil {
		s.logger.Warn("best-effort cancel failed",
			"task_id", taskID,
			"error", err)
	}
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

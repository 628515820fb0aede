package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/agent-protocol/a2a-relay/pkg/a2a"
	"github.com/agent-protocol/a2a-relay/pkg/ptr"
	"github.com/agent-protocol/a2a-relay/pkg/tasks"
)

// fakeClient implements TaskClient with canned responses and call counters.
type fakeClient struct {
	sendResp *a2a.Task
	sendErr  error
	getResp  *a2a.Task
	getErr   error

	cancelErr   error
	registerErr error

	sendCalls     int
	getCalls      int
	cancelCalls   int
	registerCalls int
	lastRegister  *a2a.TaskPushNotificationConfig
}

func (f *fakeClient) SendTask(ctx context.Context, params *a2a.TaskSendParams) (*a2a.Task, error) {
	f.sendCalls++
	return f.sendResp, f.sendErr
}

func (f *fakeClient) GetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	f.getCalls++
	return f.getResp, f.getErr
}

func (f *fakeClient) CancelTask(ctx context.Context, params *a2a.TaskIdParams) (*a2a.Task, error) {
	f.cancelCalls++
	return nil, f.cancelErr
}

func (f *fakeClient) SetTaskPushNotification(ctx context.Context, config *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	f.registerCalls++
	f.lastRegister = config
	return config, f.registerErr
}

func newTestService(fc *fakeClient) (*Service, tasks.Store) {
	store := tasks.NewMemoryStore()
	clients := ClientFactoryFunc(func(agentID string) (TaskClient, error) {
		return fc, nil
	})
	service := NewService(clients, store, &ServiceConfig{
		CallbackURL: "http://relay.local/push-callback",
	})
	return service, store
}

func taskWithText(id string, state a2a.TaskState, text string) *a2a.Task {
	task := &a2a.Task{
		ID:     id,
		Status: a2a.TaskStatus{State: state},
	}
	if text != "" {
		task.Artifacts = []a2a.Artifact{
			{Parts: []a2a.Part{a2a.NewTextPart(text)}},
		}
	}
	return task
}

func TestCreateTaskValidation(t *testing.T) {
	fc := &fakeClient{}
	service, _ := newTestService(fc)
	ctx := context.Background()

	tests := []struct {
		name    string
		session string
		agentID string
		message string
	}{
		{"missing session", "", "a1", "hi"},
		{"missing agent", "s1", "", "hi"},
		{"missing message", "s1", "a1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateTask(ctx, tt.session, tt.agentID, tt.message)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}

	if fc.sendCalls != 0 {
		t.Errorf("Validation failures must not contact the remote agent, got %d calls", fc.sendCalls)
	}
}

func TestCreateTaskSynchronousCompletion(t *testing.T) {
	fc := &fakeClient{sendResp: taskWithText("task-1", a2a.TaskStateCompleted, "hello")}
	service, store := newTestService(fc)
	ctx := context.Background()

	taskID, err := service.CreateTask(ctx, "s1", "a1", "hi")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if taskID != "task-1" {
		t.Errorf("Expected remote-assigned task ID task-1, got %s", taskID)
	}

	record, err := store.Get(ctx, "s1", "task-1")
	if err != nil {
		t.Fatalf("Failed to read store: %v", err)
	}
	if record == nil {
		t.Fatal("Expected a record in the store")
	}
	if record.AgentID != "a1" {
		t.Errorf("Expected agent a1, got %s", record.AgentID)
	}
	if !record.IsFinal {
		t.Error("Synchronously completed task should be final")
	}
	if record.Message == nil || *record.Message != "hello" {
		t.Errorf("Expected message hello, got %v", record.Message)
	}

	if fc.registerCalls != 1 {
		t.Errorf("Expected one push registration, got %d", fc.registerCalls)
	}
	if fc.lastRegister == nil || fc.lastRegister.ID != "task-1" {
		t.Errorf("Push registration should target the task, got %+v", fc.lastRegister)
	}
	if !strings.Contains(fc.lastRegister.PushNotificationConfig.URL, "session=s1") {
		t.Errorf("Callback URL should carry the session token, got %s", fc.lastRegister.PushNotificationConfig.URL)
	}
}

func TestCreateTaskPendingThenCallback(t *testing.T) {
	fc := &fakeClient{sendResp: taskWithText("task-2", a2a.TaskStateSubmitted, "")}
	service, store := newTestService(fc)
	ctx := context.Background()

	taskID, err := service.CreateTask(ctx, "s1", "a1", "compute")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	record, _ := store.Get(ctx, "s1", taskID)
	if record == nil {
		t.Fatal("Expected a record in the store")
	}
	if record.IsFinal {
		t.Error("Pending task should not be final")
	}
	if record.Message != nil {
		t.Errorf("Pending task should have no message, got %v", *record.Message)
	}

	// The completion event carries no content; Reconcile must re-fetch.
	fc.getResp = taskWithText(taskID, a2a.TaskStateCompleted, "42")
	event := &a2a.TaskStatusUpdateEvent{
		ID:     taskID,
		Status: a2a.EventStatus{State: a2a.TaskStateCompleted},
		Final:  true,
	}
	if err := service.Reconcile(ctx, "s1", event); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if fc.getCalls != 1 {
		t.Errorf("Expected one re-fetch, got %d", fc.getCalls)
	}

	record, _ = store.Get(ctx, "s1", taskID)
	if !record.IsFinal {
		t.Error("Record should be final after the final event")
	}
	if record.Message == nil || *record.Message != "42" {
		t.Errorf("Expected message 42, got %v", record.Message)
	}
}

func TestCreateTaskRemoteFailure(t *testing.T) {
	fc := &fakeClient{sendErr: fmt.Errorf("connection refused")}
	service, store := newTestService(fc)
	ctx := context.Background()

	_, err := service.CreateTask(ctx, "s1", "a1", "hi")
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remoteErr.Op != "submit" {
		t.Errorf("Expected submit op, got %s", remoteErr.Op)
	}

	if record, _ := store.Get(ctx, "s1", "task-1"); record != nil {
		t.Error("No record should be stored after a failed submission")
	}
}

func TestCreateTaskEmptyResponse(t *testing.T) {
	fc := &fakeClient{}
	service, _ := newTestService(fc)

	_, err := service.CreateTask(context.Background(), "s1", "a1", "hi")
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError for an absent response, got %v", err)
	}
}

func TestCreateTaskFailedStatus(t *testing.T) {
	fc := &fakeClient{sendResp: taskWithText("task-3", a2a.TaskStateFailed, "")}
	service, store := newTestService(fc)
	ctx := context.Background()

	_, err := service.CreateTask(ctx, "s1", "a1", "hi")
	var failedErr *TaskFailedError
	if !errors.As(err, &failedErr) {
		t.Fatalf("Expected TaskFailedError, got %v", err)
	}
	if failedErr.TaskID != "task-3" {
		t.Errorf("Expected task-3, got %s", failedErr.TaskID)
	}

	if record, _ := store.Get(ctx, "s1", "task-3"); record != nil {
		t.Error("No record should be stored for a synchronously failed task")
	}
}

func TestCreateTaskRegistrationFailureIsSwallowed(t *testing.T) {
	fc := &fakeClient{
		sendResp:    taskWithText("task-4", a2a.TaskStateCompleted, "done"),
		registerErr: fmt.Errorf("push endpoint rejected"),
	}
	service, store := newTestService(fc)
	ctx := context.Background()

	taskID, err := service.CreateTask(ctx, "s1", "a1", "hi")
	if err != nil {
		t.Fatalf("Registration failure must not fail task creation: %v", err)
	}
	if record, _ := store.Get(ctx, "s1", taskID); record == nil {
		t.Error("Record should be stored despite registration failure")
	}
}

func TestReconcileFailedEvent(t *testing.T) {
	fc := &fakeClient{sendResp: taskWithText("task-5", a2a.TaskStateSubmitted, "")}
	service, store := newTestService(fc)
	ctx := context.Background()

	taskID, _ := service.CreateTask(ctx, "s1", "a1", "hi")

	event := &a2a.TaskStatusUpdateEvent{
		ID:     taskID,
		Status: a2a.EventStatus{State: a2a.TaskStateFailed, Message: ptr.Ptr("boom")},
		Final:  true,
	}
	if err := service.Reconcile(ctx, "s1", event); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	record, _ := store.Get(ctx, "s1", taskID)
	if !record.IsFinal {
		t.Error("Record should be final")
	}
	if record.Message == nil || *record.Message != "Error! Message: boom" {
		t.Errorf("Expected synthesized error message, got %v", record.Message)
	}
}

func TestReconcileInputRequired(t *testing.T) {
	tests := []struct {
		name      string
		cancelErr error
	}{
		{"cancel succeeds", nil},
		{"cancel fails", fmt.Errorf("not cancelable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{
				sendResp:  taskWithText("task-6", a2a.TaskStateSubmitted, ""),
				cancelErr: tt.cancelErr,
			}
			service, store := newTestService(fc)
			ctx := context.Background()

			taskID, _ := service.CreateTask(ctx, "s1", "a1", "hi")

			event := &a2a.TaskStatusUpdateEvent{
				ID:     taskID,
				Status: a2a.EventStatus{State: a2a.TaskStateInputRequired},
				Final:  false, // finalized regardless of the event flag
			}
			if err := service.Reconcile(ctx, "s1", event); err != nil {
				t.Fatalf("Reconcile failed: %v", err)
			}

			if fc.cancelCalls != 1 {
				t.Errorf("Expected exactly one cancel attempt, got %d", fc.cancelCalls)
			}

			record, _ := store.Get(ctx, "s1", taskID)
			if !record.IsFinal {
				t.Error("Input-required must finalize the record")
			}
			if record.Message == nil || *record.Message != inputRequiredMessage {
				t.Errorf("Expected the fixed explanatory message, got %v", record.Message)
			}
		})
	}
}

func TestReconcileUnknownTask(t *testing.T) {
	fc := &fakeClient{}
	service, _ := newTestService(fc)

	event := &a2a.TaskStatusUpdateEvent{
		ID:     "never-created",
		Status: a2a.EventStatus{State: a2a.TaskStateCompleted},
		Final:  true,
	}
	err := service.Reconcile(context.Background(), "s1", event)
	if !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("Expected ErrUnknownTask, got %v", err)
	}
	if fc.getCalls != 0 {
		t.Error("Unknown task must not trigger a remote fetch")
	}
}

func TestReconcileIdempotent(t *testing.T) {
	fc := &fakeClient{sendResp: taskWithText("task-7", a2a.TaskStateSubmitted, "")}
	service, store := newTestService(fc)
	ctx := context.Background()

	taskID, _ := service.CreateTask(ctx, "s1", "a1", "hi")
	fc.getResp = taskWithText(taskID, a2a.TaskStateCompleted, "result")

	event := &a2a.TaskStatusUpdateEvent{
		ID:     taskID,
		Status: a2a.EventStatus{State: a2a.TaskStateCompleted},
		Final:  true,
	}

	if err := service.Reconcile(ctx, "s1", event); err != nil {
		t.Fatalf("First delivery failed: %v", err)
	}
	first, _ := store.Get(ctx, "s1", taskID)

	if err := service.Reconcile(ctx, "s1", event); err != nil {
		t.Fatalf("Duplicate delivery failed: %v", err)
	}
	second, _ := store.Get(ctx, "s1", taskID)

	if first.IsFinal != second.IsFinal || stringValue(first.Message) != stringValue(second.Message) {
		t.Errorf("Duplicate delivery changed the record: %+v vs %+v", first, second)
	}
}

func TestReconcileIgnoresUntrackedStates(t *testing.T) {
	fc := &fakeClient{sendResp: taskWithText("task-8", a2a.TaskStateSubmitted, "")}
	service, store := newTestService(fc)
	ctx := context.Background()

	taskID, _ := service.CreateTask(ctx, "s1", "a1", "hi")

	event := &a2a.TaskStatusUpdateEvent{
		ID:     taskID,
		Status: a2a.EventStatus{State: a2a.TaskStateWorking},
	}
	if err := service.Reconcile(ctx, "s1", event); err != nil {
		t.Fatalf("Untracked state should be a no-op, got %v", err)
	}

	record, _ := store.Get(ctx, "s1", taskID)
	if record.IsFinal || record.Message != nil {
		t.Errorf("Record should be unchanged, got %+v", record)
	}
}

func TestFetchAndClearIsDestructive(t *testing.T) {
	fc := &fakeClient{sendResp: taskWithText("task-9", a2a.TaskStateCompleted, "hello")}
	service, _ := newTestService(fc)
	ctx := context.Background()

	taskID, _ := service.CreateTask(ctx, "s1", "a1", "hi")

	record, err := service.FetchAndClear(ctx, "s1", taskID)
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	if record.Message == nil || *record.Message != "hello" {
		t.Errorf("Expected message hello, got %v", record.Message)
	}

	if _, err := service.FetchAndClear(ctx, "s1", taskID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Second fetch should report not-found, got %v", err)
	}
}

func TestLookupDoesNotClear(t *testing.T) {
	fc := &fakeClient{sendResp: taskWithText("task-12", a2a.TaskStateCompleted, "kept")}
	service, _ := newTestService(fc)
	ctx := context.Background()

	taskID, _ := service.CreateTask(ctx, "s1", "a1", "hi")

	for i := 0; i < 2; i++ {
		record, err := service.Lookup(ctx, "s1", taskID)
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if record.Message == nil || *record.Message != "kept" {
			t.Errorf("Expected message kept, got %v", record.Message)
		}
	}

	if _, err := service.Lookup(ctx, "s1", "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestFetchAndClearUnknownTask(t *testing.T) {
	service, _ := newTestService(&fakeClient{})

	_, err := service.FetchAndClear(context.Background(), "s1", "missing")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestFetchAndClearIsSessionScoped(t *testing.T) {
	fc := &fakeClient{sendResp: taskWithText("task-10", a2a.TaskStateCompleted, "mine")}
	service, _ := newTestService(fc)
	ctx := context.Background()

	taskID, _ := service.CreateTask(ctx, "s1", "a1", "hi")

	if _, err := service.FetchAndClear(ctx, "other-session", taskID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Fetch from another session should report not-found, got %v", err)
	}
	if _, err := service.FetchAndClear(ctx, "s1", taskID); err != nil {
		t.Errorf("Fetch from the owning session failed: %v", err)
	}
}

func TestCancelTask(t *testing.T) {
	fc := &fakeClient{
		sendResp:  taskWithText("task-11", a2a.TaskStateSubmitted, ""),
		cancelErr: fmt.Errorf("remote unavailable"),
	}
	service, store := newTestService(fc)
	ctx := context.Background()

	taskID, _ := service.CreateTask(ctx, "s1", "a1", "hi")

	record, err := service.CancelTask(ctx, "s1", taskID)
	if err != nil {
		t.Fatalf("Cancel must not surface remote failures: %v", err)
	}
	if fc.cancelCalls != 1 {
		t.Errorf("Expected one cancel attempt, got %d", fc.cancelCalls)
	}
	if !record.IsFinal {
		t.Error("Canceled record should be final")
	}

	stored, _ := store.Get(ctx, "s1", taskID)
	if stored == nil || !stored.IsFinal {
		t.Error("Cancellation should be persisted")
	}

	// A second cancel of the now-final record is a no-op.
	if _, err := service.CancelTask(ctx, "s1", taskID); err != nil {
		t.Fatalf("Cancel of final record failed: %v", err)
	}
	if fc.cancelCalls != 1 {
		t.Errorf("Final record should not trigger another remote cancel, got %d", fc.cancelCalls)
	}
}

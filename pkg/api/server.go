// Package api exposes the relay's HTTP surface: task submission, destructive
// result reads, the push-callback endpoint, and a WebSocket watch feed.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agent-protocol/a2a-relay/pkg/a2a"
	"github.com/agent-protocol/a2a-relay/pkg/relay"
	"github.com/agent-protocol/a2a-relay/pkg/tasks"
)

// SessionHeader carries the caller-supplied session token that scopes all
// task state.
const SessionHeader = "X-Session-ID"

// ServerConfig contains configuration for the relay HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	AllowOrigins []string
}

// Server is the relay HTTP server.
type Server struct {
	config   *ServerConfig
	service  *relay.Service
	engine   *gin.Engine
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// CreateTaskRequest is the body of POST /task.
type CreateTaskRequest struct {
	Message string `json:"message" binding:"required"`
	AgentID string `json:"agentId" binding:"required"`
}

// CreateTaskResponse is the body returned by POST /task.
type CreateTaskResponse struct {
	Task string `json:"task"`
}

// TaskResultResponse is a snapshot of a tracked task.
type TaskResultResponse struct {
	AgentID string  `json:"agentId"`
	IsFinal bool    `json:"isFinal"`
	Message *string `json:"message"`
}

// NewServer creates a relay server around the reconciler service.
func NewServer(config *ServerConfig, service *relay.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	if len(config.AllowOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     config.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"*"},
			AllowCredentials: true,
		}))
	}

	server := &Server{
		config:  config,
		service: service,
		engine:  engine,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.engine.POST("/task", s.handleCreateTask)
	s.engine.DELETE("/task", s.handleCancelTask)
	s.engine.GET("/task-result", s.handleTaskResult)
	s.engine.GET("/push-callback", s.handleCallbackProbe)
	s.engine.POST("/push-callback", s.handleCallbackEvent)
	s.engine.GET("/task-events", s.handleTaskEvents)
	s.engine.GET("/health", s.handleHealth)
}

// Handler returns the server's root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start starts the HTTP server and blocks.
func (s *Server) Start() error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting relay server", "address", address)
	return http.ListenAndServe(address, s.engine)
}

// handleCreateTask submits a new task to a remote agent.
func (s *Server) handleCreateTask(c *gin.Context) {
	session, ok := s.sessionFromHeader(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Invalid request body: %v", err)
		return
	}

	taskID, err := s.service.CreateTask(c.Request.Context(), session, req.AgentID, req.Message)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, CreateTaskResponse{Task: taskID})
}

// handleCancelTask forwards a best-effort cancel and finalizes the record.
func (s *Server) handleCancelTask(c *gin.Context) {
	session, ok := s.sessionFromHeader(c)
	if !ok {
		return
	}

	record, err := s.service.CancelTask(c.Request.Context(), session, c.Query("taskId"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resultFromRecord(record))
}

// handleTaskResult serves the destructive read of a task record.
func (s *Server) handleTaskResult(c *gin.Context) {
	session, ok := s.sessionFromHeader(c)
	if !ok {
		return
	}

	record, err := s.service.FetchAndClear(c.Request.Context(), session, c.Query("taskId"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resultFromRecord(record))
}

// handleCallbackProbe answers the push provider's endpoint-ownership
// handshake by echoing the validation token.
func (s *Server) handleCallbackProbe(c *gin.Context) {
	token := c.Query("validationToken")
	if token == "" {
		c.String(http.StatusBadRequest, "validationToken is required")
		return
	}
	c.String(http.StatusOK, token)
}

// handleCallbackEvent applies a push-delivered status update. The session
// token arrives in the "session" query parameter the relay embedded when it
// registered the callback, with the session header as fallback.
func (s *Server) handleCallbackEvent(c *gin.Context) {
	session := c.Query("session")
	if session == "" {
		session = c.GetHeader(SessionHeader)
	}

	var event a2a.TaskStatusUpdateEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.String(http.StatusBadRequest, "Invalid event body: %v", err)
		return
	}

	if err := s.service.Reconcile(c.Request.Context(), session, &event); err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// handleTaskEvents upgrades to a WebSocket and streams record snapshots as
// reconciliation updates land, closing after a final snapshot.
func (s *Server) handleTaskEvents(c *gin.Context) {
	session := c.GetHeader(SessionHeader)
	if session == "" {
		// Browser WebSocket clients cannot set custom headers.
		session = c.Query("session")
	}
	if session == "" {
		c.String(http.StatusBadRequest, "missing %s header", SessionHeader)
		return
	}
	taskID := c.Query("taskId")
	if taskID == "" {
		c.String(http.StatusBadRequest, "taskId is required")
		return
	}

	// Subscribe before reading the current record so no update can land
	// between the snapshot and the first streamed event.
	sub := s.service.Watcher().Subscribe(session, taskID)
	defer sub.Cancel()

	record, err := s.service.Lookup(c.Request.Context(), session, taskID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(resultFromRecord(record)); err != nil {
		return
	}
	if record.IsFinal {
		return
	}

	// Drain client frames so disconnects are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case record, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.WriteJSON(resultFromRecord(&record)); err != nil {
				return
			}
			if record.IsFinal {
				return
			}
		case <-done:
			return
		}
	}
}

// handleHealth returns server health status.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// sessionFromHeader resolves the session token, rejecting requests without it.
func (s *Server) sessionFromHeader(c *gin.Context) (string, bool) {
	session := c.GetHeader(SessionHeader)
	if session == "" {
		c.String(http.StatusBadRequest, "missing %s header", SessionHeader)
		return "", false
	}
	return session, true
}

// writeError maps reconciler errors to plain HTTP status + text responses.
func (s *Server) writeError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, relay.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, relay.ErrUnknownTask), errors.Is(err, relay.ErrTaskNotFound):
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
	}
	c.String(status, err.Error())
}

func resultFromRecord(record *tasks.Record) TaskResultResponse {
	return TaskResultResponse{
		AgentID: record.AgentID,
		IsFinal: record.IsFinal,
		Message: record.Message,
	}
}

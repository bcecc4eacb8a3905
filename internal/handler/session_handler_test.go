package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/internal/dto"
	"github.com/airtime-live/stagedoor/internal/service"
	"github.com/airtime-live/stagedoor/pkg/response"
)

// MockSessionService is a mock implementation of SessionService for testing
type MockSessionService struct {
	BookFunc                    func(ctx context.Context, userID string, req *dto.BookSessionRequest) (*dto.BookSessionResponse, error)
	EndFunc                     func(ctx context.Context, sessionID, reason string) error
	CancelFunc                  func(ctx context.Context, sessionID, userID string) (*dto.CancelSessionResponse, error)
	GetSessionFunc              func(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
	GetCurrentSessionFunc       func(ctx context.Context, userID string) (*dto.SessionResponse, error)
	GetAgentAvailabilityFunc    func(ctx context.Context, agentID string) (*dto.AgentAvailabilityResponse, error)
	RecoverOrphanedSessionsFunc func(ctx context.Context) (int, error)
}

func (m *MockSessionService) Book(ctx context.Context, userID string, req *dto.BookSessionRequest) (*dto.BookSessionResponse, error) {
	if m.BookFunc != nil {
		return m.BookFunc(ctx, userID, req)
	}
	return nil, nil
}

func (m *MockSessionService) End(ctx context.Context, sessionID, reason string) error {
	if m.EndFunc != nil {
		return m.EndFunc(ctx, sessionID, reason)
	}
	return nil
}

func (m *MockSessionService) Cancel(ctx context.Context, sessionID, userID string) (*dto.CancelSessionResponse, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, sessionID, userID)
	}
	return nil, nil
}

func (m *MockSessionService) GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *MockSessionService) GetCurrentSession(ctx context.Context, userID string) (*dto.SessionResponse, error) {
	if m.GetCurrentSessionFunc != nil {
		return m.GetCurrentSessionFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockSessionService) GetAgentAvailability(ctx context.Context, agentID string) (*dto.AgentAvailabilityResponse, error) {
	if m.GetAgentAvailabilityFunc != nil {
		return m.GetAgentAvailabilityFunc(ctx, agentID)
	}
	return nil, nil
}

func (m *MockSessionService) RecoverOrphanedSessions(ctx context.Context) (int, error) {
	if m.RecoverOrphanedSessionsFunc != nil {
		return m.RecoverOrphanedSessionsFunc(ctx)
	}
	return 0, nil
}

func (m *MockSessionService) Shutdown() {}

func setupSessionRouter(handler *SessionHandler, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	if userID != "" {
		router.Use(func(c *gin.Context) {
			c.Set("user_id", userID)
			c.Next()
		})
	}

	sessions := router.Group("/sessions")
	{
		sessions.POST("", handler.Book)
		sessions.GET("/current", handler.GetCurrent)
		sessions.GET("/:id", handler.GetSession)
		sessions.POST("/:id/end", handler.End)
		sessions.DELETE("/:id", handler.Cancel)
	}
	router.GET("/agents/:id/availability", handler.GetAvailability)

	return router
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) *response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return &resp
}

func TestSessionHandler_Book(t *testing.T) {
	position := 1
	tests := []struct {
		name           string
		userID         string
		request        *dto.BookSessionRequest
		mockFunc       func(ctx context.Context, userID string, req *dto.BookSessionRequest) (*dto.BookSessionResponse, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:    "immediate admission",
			userID:  "user-123",
			request: &dto.BookSessionRequest{AgentID: "agent-1"},
			mockFunc: func(ctx context.Context, userID string, req *dto.BookSessionRequest) (*dto.BookSessionResponse, error) {
				now := time.Now()
				end := now.Add(5 * time.Minute)
				return &dto.BookSessionResponse{
					SessionID:  "session-123",
					AgentID:    req.AgentID,
					Status:     "active",
					PointsCost: 10,
					NewBalance: 90,
					StartTime:  &now,
					EndTime:    &end,
				}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:    "queued behind occupant",
			userID:  "user-123",
			request: &dto.BookSessionRequest{AgentID: "agent-1"},
			mockFunc: func(ctx context.Context, userID string, req *dto.BookSessionRequest) (*dto.BookSessionResponse, error) {
				return &dto.BookSessionResponse{
					SessionID:     "session-123",
					AgentID:       req.AgentID,
					Status:        "queued",
					PointsCost:    10,
					NewBalance:    90,
					QueuePosition: &position,
				}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "unauthorized - no user_id",
			userID:         "",
			request:        &dto.BookSessionRequest{AgentID: "agent-1"},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHORIZED",
		},
		{
			name:           "missing agent_id",
			userID:         "user-123",
			request:        &dto.BookSessionRequest{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name:    "insufficient points",
			userID:  "user-123",
			request: &dto.BookSessionRequest{AgentID: "agent-1"},
			mockFunc: func(ctx context.Context, userID string, req *dto.BookSessionRequest) (*dto.BookSessionResponse, error) {
				return nil, domain.ErrInsufficientPoints
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedCode:   "INSUFFICIENT_POINTS",
		},
		{
			name:    "already has a session",
			userID:  "user-123",
			request: &dto.BookSessionRequest{AgentID: "agent-1"},
			mockFunc: func(ctx context.Context, userID string, req *dto.BookSessionRequest) (*dto.BookSessionResponse, error) {
				return nil, domain.ErrAlreadyHasSession
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "ALREADY_HAS_SESSION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSessionHandler(&MockSessionService{BookFunc: tt.mockFunc})
			router := setupSessionRouter(handler, tt.userID)

			body, _ := json.Marshal(tt.request)
			req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedCode != "" {
				resp := decodeResponse(t, w)
				if resp.Error == nil || resp.Error.Code != tt.expectedCode {
					t.Errorf("expected error code %s, got %+v", tt.expectedCode, resp.Error)
				}
			}
		})
	}
}

func TestSessionHandler_End(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		sessionOwner   string
		endErr         error
		expectedStatus int
	}{
		{
			name:           "owner ends own session",
			userID:         "user-123",
			sessionOwner:   "user-123",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "non-owner gets not found",
			userID:         "user-456",
			sessionOwner:   "user-123",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "session not yet active",
			userID:         "user-123",
			sessionOwner:   "user-123",
			endErr:         domain.ErrSessionNotActive,
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReason string
			mock := &MockSessionService{
				GetSessionFunc: func(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
					return &dto.SessionResponse{ID: sessionID, UserID: tt.sessionOwner, Status: "active"}, nil
				},
				EndFunc: func(ctx context.Context, sessionID, reason string) error {
					gotReason = reason
					return tt.endErr
				},
			}
			handler := NewSessionHandler(mock)
			router := setupSessionRouter(handler, tt.userID)

			req := httptest.NewRequest(http.MethodPost, "/sessions/session-123/end", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusOK && gotReason != service.EndReasonUser {
				t.Errorf("expected end reason %q, got %q", service.EndReasonUser, gotReason)
			}
		})
	}
}

func TestSessionHandler_Cancel(t *testing.T) {
	tests := []struct {
		name           string
		mockFunc       func(ctx context.Context, sessionID, userID string) (*dto.CancelSessionResponse, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "queued session cancelled",
			mockFunc: func(ctx context.Context, sessionID, userID string) (*dto.CancelSessionResponse, error) {
				return &dto.CancelSessionResponse{
					SessionID:      sessionID,
					Status:         "cancelled",
					RefundedPoints: 10,
					NewBalance:     100,
				}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "active session not cancellable",
			mockFunc: func(ctx context.Context, sessionID, userID string) (*dto.CancelSessionResponse, error) {
				return nil, domain.ErrNotCancellable
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "NOT_CANCELLABLE",
		},
		{
			name: "unknown session",
			mockFunc: func(ctx context.Context, sessionID, userID string) (*dto.CancelSessionResponse, error) {
				return nil, domain.ErrSessionNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSessionHandler(&MockSessionService{CancelFunc: tt.mockFunc})
			router := setupSessionRouter(handler, "user-123")

			req := httptest.NewRequest(http.MethodDelete, "/sessions/session-123", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedCode != "" {
				resp := decodeResponse(t, w)
				if resp.Error == nil || resp.Error.Code != tt.expectedCode {
					t.Errorf("expected error code %s, got %+v", tt.expectedCode, resp.Error)
				}
			}
		})
	}
}

func TestSessionHandler_GetCurrent(t *testing.T) {
	handler := NewSessionHandler(&MockSessionService{
		GetCurrentSessionFunc: func(ctx context.Context, userID string) (*dto.SessionResponse, error) {
			return nil, domain.ErrSessionNotFound
		},
	})
	router := setupSessionRouter(handler, "user-123")

	req := httptest.NewRequest(http.MethodGet, "/sessions/current", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestSessionHandler_GetAvailability(t *testing.T) {
	handler := NewSessionHandler(&MockSessionService{
		GetAgentAvailabilityFunc: func(ctx context.Context, agentID string) (*dto.AgentAvailabilityResponse, error) {
			return &dto.AgentAvailabilityResponse{
				AgentID:     agentID,
				Busy:        true,
				QueueLength: 2,
			}, nil
		},
	})
	// Availability is public; no auth middleware
	router := setupSessionRouter(handler, "")

	req := httptest.NewRequest(http.MethodGet, "/agents/agent-1/availability", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	resp := decodeResponse(t, w)
	if !resp.Success {
		t.Error("expected a success envelope")
	}
}

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
)

// MockPointsService is a mock implementation of PointsService for testing
type MockPointsService struct {
	SpendFunc      func(ctx context.Context, userID string, amount int, description, relatedID string) (*domain.Transaction, error)
	EarnFunc       func(ctx context.Context, userID string, kind domain.TransactionKind, amount int, description, relatedID string) (*domain.Transaction, error)
	RegenerateFunc func(ctx context.Context, userID string) (*domain.Transaction, error)
	GetBalanceFunc func(ctx context.Context, userID string) (*dto.BalanceResponse, error)
	GetHistoryFunc func(ctx context.Context, userID string, page, pageSize int) (*dto.TransactionHistoryResponse, error)
}

func (m *MockPointsService) Spend(ctx context.Context, userID string, amount int, description, relatedID string) (*domain.Transaction, error) {
	if m.SpendFunc != nil {
		return m.SpendFunc(ctx, userID, amount, description, relatedID)
	}
	return nil, nil
}

func (m *MockPointsService) Earn(ctx context.Context, userID string, kind domain.TransactionKind, amount int, description, relatedID string) (*domain.Transaction, error) {
	if m.EarnFunc != nil {
		return m.EarnFunc(ctx, userID, kind, amount, description, relatedID)
	}
	return nil, nil
}

func (m *MockPointsService) Regenerate(ctx context.Context, userID string) (*domain.Transaction, error) {
	if m.RegenerateFunc != nil {
		return m.RegenerateFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockPointsService) GetBalance(ctx context.Context, userID string) (*dto.BalanceResponse, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockPointsService) GetHistory(ctx context.Context, userID string, page, pageSize int) (*dto.TransactionHistoryResponse, error) {
	if m.GetHistoryFunc != nil {
		return m.GetHistoryFunc(ctx, userID, page, pageSize)
	}
	return nil, nil
}

func setupPointsRouter(handler *PointsHandler, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	if userID != "" {
		router.Use(func(c *gin.Context) {
			c.Set("user_id", userID)
			c.Next()
		})
	}

	points := router.Group("/points")
	{
		points.GET("/balance", handler.GetBalance)
		points.POST("/spend", handler.Spend)
		points.GET("/history", handler.GetHistory)
	}

	return router
}

func TestPointsHandler_GetBalance(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		mockFunc       func(ctx context.Context, userID string) (*dto.BalanceResponse, error)
		expectedStatus int
	}{
		{
			name:   "current balance",
			userID: "user-123",
			mockFunc: func(ctx context.Context, userID string) (*dto.BalanceResponse, error) {
				return &dto.BalanceResponse{UserID: userID, Points: 70, MaxPoints: 100}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unauthorized - no user_id",
			userID:         "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:   "unknown user",
			userID: "user-missing",
			mockFunc: func(ctx context.Context, userID string) (*dto.BalanceResponse, error) {
				return nil, domain.ErrUserNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewPointsHandler(&MockPointsService{GetBalanceFunc: tt.mockFunc})
			router := setupPointsRouter(handler, tt.userID)

			req := httptest.NewRequest(http.MethodGet, "/points/balance", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestPointsHandler_Spend(t *testing.T) {
	tests := []struct {
		name           string
		request        *dto.SpendPointsRequest
		mockFunc       func(ctx context.Context, userID string, amount int, description, relatedID string) (*domain.Transaction, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:    "successful spend",
			request: &dto.SpendPointsRequest{Amount: 10, Reason: "tip"},
			mockFunc: func(ctx context.Context, userID string, amount int, description, relatedID string) (*domain.Transaction, error) {
				return &domain.Transaction{
					ID:            "tx-123",
					UserID:        userID,
					Kind:          domain.TransactionSpend,
					Amount:        amount,
					Description:   description,
					BalanceBefore: 100,
					BalanceAfter:  90,
					CreatedAt:     time.Now(),
				}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing amount",
			request:        &dto.SpendPointsRequest{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name:    "insufficient points",
			request: &dto.SpendPointsRequest{Amount: 50},
			mockFunc: func(ctx context.Context, userID string, amount int, description, relatedID string) (*domain.Transaction, error) {
				return nil, domain.ErrInsufficientPoints
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedCode:   "INSUFFICIENT_POINTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewPointsHandler(&MockPointsService{SpendFunc: tt.mockFunc})
			router := setupPointsRouter(handler, "user-123")

			body, _ := json.Marshal(tt.request)
			req := httptest.NewRequest(http.MethodPost, "/points/spend", bytes.NewBuffer(body))
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

func TestPointsHandler_GetHistory(t *testing.T) {
	var gotPage, gotPageSize int
	handler := NewPointsHandler(&MockPointsService{
		GetHistoryFunc: func(ctx context.Context, userID string, page, pageSize int) (*dto.TransactionHistoryResponse, error) {
			gotPage, gotPageSize = page, pageSize
			return &dto.TransactionHistoryResponse{
				Transactions: []*dto.TransactionResponse{},
				Page:         page,
				PageSize:     pageSize,
			}, nil
		},
	})
	router := setupPointsRouter(handler, "user-123")

	req := httptest.NewRequest(http.MethodGet, "/points/history?page=3&page_size=50", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if gotPage != 3 || gotPageSize != 50 {
		t.Errorf("expected page 3 size 50, got page %d size %d", gotPage, gotPageSize)
	}
}

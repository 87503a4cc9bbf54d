package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "budgetly/internal/errors"
	"budgetly/internal/logger"
)

const testOwnerID = "0192f0c4-7a1e-7b3c-9d2e-000000000001"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
}

func setupAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey)})
	})
	return r
}

func doRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func foreignToken(t *testing.T) string {
	t.Helper()
	claims := &JWTClaims{
		UserID: testOwnerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    tokenIssuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("some-other-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	valid, err := GenerateAccessToken(testOwnerID, "owner@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	expired, err := GenerateAccessToken(testOwnerID, "owner@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid_token", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "missing_header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong_scheme", header: "Basic " + valid, wantStatus: http.StatusUnauthorized},
		{name: "expired_token", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "foreign_signature", header: "Bearer " + foreignToken(t), wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(setupAuthRouter(), tt.header)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			body := parseBody(t, rec)
			if tt.wantStatus == http.StatusOK {
				if body["user_id"] != testOwnerID {
					t.Errorf("expected user_id %s, got %v", testOwnerID, body["user_id"])
				}
				return
			}
			errObj, ok := body["error"].(map[string]interface{})
			if !ok {
				t.Fatal("expected error object in response")
			}
			if errObj["code"] != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED, got %v", errObj["code"])
			}
		})
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails bool
	}{
		{
			name:       "app_error",
			err:        apperrors.ErrCategoryNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "CATEGORY_NOT_FOUND",
		},
		{
			name: "validation_error_with_details",
			err: apperrors.NewValidationError(apperrors.FieldError{
				Field: "name", Rule: apperrors.RuleDuplicate, Message: "already exists",
			}),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_FAILED",
			wantDetails: true,
		},
		{
			name:       "wrapped_storage_error",
			err:        apperrors.Wrap(apperrors.ErrStorage, errors.New("connection refused")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "STORAGE_ERROR",
		},
		{
			name:       "unknown_error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler())
			r.GET("/test", func(c *gin.Context) {
				_ = c.Error(tt.err)
			})

			rec := doRequest(r, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			errObj := parseBody(t, rec)["error"].(map[string]interface{})
			if errObj["code"] != tt.wantCode {
				t.Errorf("expected %s, got %v", tt.wantCode, errObj["code"])
			}
			if _, ok := errObj["details"]; ok != tt.wantDetails {
				t.Errorf("details present = %v, want %v", ok, tt.wantDetails)
			}
		})
	}
}

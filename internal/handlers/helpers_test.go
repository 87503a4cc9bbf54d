package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"budgetly/internal/logger"
	"budgetly/internal/middleware"
	"budgetly/internal/services"
	"budgetly/internal/validator"
)

const (
	testUserID     = "0192f0c4-7a1e-7b3c-9d2e-000000000001"
	testCategoryID = "0192f0c4-7a1e-7b3c-9d2e-0000000000c1"
	testParentID   = "0192f0c4-7a1e-7b3c-9d2e-0000000000a1"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
	os.Exit(m.Run())
}

// injectUserID simulates AuthMiddleware for handler tests.
func injectUserID(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body %q: %v", rec.Body.String(), err)
	}
	return result
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) map[string]interface{} {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	body := parseJSON(t, rec)
	errBody, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	if errBody["code"] != code {
		t.Errorf("expected error code %s, got %v", code, errBody["code"])
	}
	return errBody
}

// --- mock audit service ---

type auditEntry struct {
	UserID     string
	Action     string
	ResourceID string
	Changes    map[string]any
}

type mockAuditService struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (m *mockAuditService) Log(userID, action, _, resourceID, _ string, changes map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{UserID: userID, Action: action, ResourceID: resourceID, Changes: changes})
}

func (m *mockAuditService) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

var _ services.AuditServicer = (*mockAuditService)(nil)

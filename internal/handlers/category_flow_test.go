package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"budgetly/internal/middleware"
	"budgetly/internal/models"
	"budgetly/internal/repository"
	"budgetly/internal/services"
	"budgetly/internal/testutil"
)

// flowApp wires the real stack on an isolated in-memory database.
type flowApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Token  string
	Owner  string
}

func setupFlowApp(t *testing.T) *flowApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	categoryService := services.NewCategoryService(repository.NewGormCategoryRepository(db))
	auditService := services.NewAuditService(db)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	protected := router.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware())
	NewCategoryHandler(categoryService, auditService).RegisterRoutes(protected)

	owner := testutil.NewOwnerID()
	token, err := middleware.GenerateAccessToken(owner, "owner@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return &flowApp{DB: db, Router: router, Token: token, Owner: owner}
}

func (a *flowApp) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/api/v1"+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, "/api/v1"+path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func (a *flowApp) create(t *testing.T, body string) string {
	t.Helper()
	rec := a.do(t, "POST", "/categories", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["category"].(map[string]interface{})["id"].(string)
}

func TestCategoryFlow_BuildMoveAndDelete(t *testing.T) {
	app := setupFlowApp(t)

	food := app.create(t, `{"name":"Food","color":"#336699"}`)
	groceries := app.create(t, `{"name":"Groceries","parent_id":"`+food+`"}`)

	rec := app.do(t, "GET", "/categories/"+groceries+"/breadcrumb", "")
	if got := parseJSON(t, rec)["breadcrumb"].([]interface{}); len(got) != 2 || got[0] != "Food" || got[1] != "Groceries" {
		t.Fatalf("unexpected breadcrumb %v", got)
	}

	rec = app.do(t, "PATCH", "/categories/"+food+"/parent", `{"parent_id":"`+groceries+`"}`)
	errBody := assertErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")
	if detail := errBody["details"].([]interface{})[0].(map[string]interface{}); detail["rule"] != "cycle" {
		t.Errorf("expected cycle rule, got %v", detail)
	}

	rec = app.do(t, "GET", "/categories/dropdown", "")
	options := parseJSON(t, rec)["options"].([]interface{})
	if len(options) != 2 || options[1].(map[string]interface{})["label"] != "— Groceries" {
		t.Errorf("unexpected dropdown %v", options)
	}

	testutil.CreateTestExpense(t, app.DB, app.Owner, groceries, 1999, time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC))

	rec = app.do(t, "GET", "/categories/"+food+"/total", "")
	if got := parseJSON(t, rec)["total"]; got != "19.99" {
		t.Errorf("expected 19.99, got %v", got)
	}

	rec = app.do(t, "DELETE", "/categories/"+food+"?cascade=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete failed: %d %s", rec.Code, rec.Body.String())
	}
	if state := parseJSON(t, rec)["outcome"].(map[string]interface{})["state"]; state != "deactivated" {
		t.Errorf("expected deactivated, got %v", state)
	}

	rec = app.do(t, "GET", "/categories/tree?active_only=true", "")
	if tree := parseJSON(t, rec)["tree"].([]interface{}); len(tree) != 0 {
		t.Errorf("expected an empty active tree, got %v", tree)
	}

	var audits int64
	app.DB.Model(&models.AuditLog{}).Where("user_id = ?", app.Owner).Count(&audits)
	if audits != 3 {
		t.Errorf("expected 3 audit entries (2 creates, 1 delete), got %d", audits)
	}
}

func TestCategoryFlow_CreateReportsAllViolations(t *testing.T) {
	app := setupFlowApp(t)
	app.create(t, `{"name":"Food"}`)

	rec := app.do(t, "POST", "/categories", `{"name":"Food","color":"nope"}`)

	errBody := assertErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")
	rules := map[string]bool{}
	for _, d := range errBody["details"].([]interface{}) {
		detail := d.(map[string]interface{})
		rules[detail["field"].(string)+"/"+detail["rule"].(string)] = true
	}
	if !rules["name/duplicate"] || !rules["color/hex_color"] {
		t.Errorf("expected duplicate and hex_color violations, got %v", rules)
	}
}

func TestCategoryFlow_OwnersAreIsolated(t *testing.T) {
	app := setupFlowApp(t)
	food := app.create(t, `{"name":"Food"}`)

	other, err := middleware.GenerateAccessToken(testutil.NewOwnerID(), "other@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	app.Token = other

	rec := app.do(t, "GET", "/categories/"+food, "")
	assertErrorCode(t, rec, http.StatusNotFound, "CATEGORY_NOT_FOUND")

	rec = app.do(t, "GET", "/categories", "")
	if total := parseJSON(t, rec)["total_items"].(float64); total != 0 {
		t.Errorf("expected no categories for another owner, got %v", total)
	}
}

func TestCategoryFlow_RequiresToken(t *testing.T) {
	app := setupFlowApp(t)

	rec := doRequest(app.Router, "GET", "/api/v1/categories", "")
	assertErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"budgetly/internal/models"
	"budgetly/internal/pagination"
	"budgetly/internal/repository"
	"budgetly/internal/services"
)

// CategoryHandler handles category tree requests.
type CategoryHandler struct {
	categoryService services.CategoryServicer
	auditService    services.AuditServicer
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categoryService services.CategoryServicer, auditService services.AuditServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, auditService: auditService}
}

// RegisterRoutes mounts the category endpoints on the given group.
func (h *CategoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	categories := rg.Group("/categories")
	categories.POST("", h.CreateCategory)
	categories.GET("", h.GetUserCategories)
	categories.GET("/tree", h.GetTree)
	categories.GET("/dropdown", h.GetDropdown)
	categories.GET("/widget", h.GetWidget)
	categories.POST("/bulk-delete", h.BulkDeleteCategories)
	categories.GET("/:id", h.GetCategoryByID)
	categories.PUT("/:id", h.UpdateCategory)
	categories.PATCH("/:id/name", h.RenameCategory)
	categories.PATCH("/:id/parent", h.MoveCategory)
	categories.POST("/:id/toggle-status", h.ToggleStatus)
	categories.DELETE("/:id", h.DeleteCategory)
	categories.GET("/:id/ancestors", h.GetAncestors)
	categories.GET("/:id/descendants", h.GetDescendants)
	categories.GET("/:id/breadcrumb", h.GetBreadcrumb)
	categories.GET("/:id/total", h.GetTotalExpense)
	categories.GET("/:id/can-delete", h.CanDelete)
}

// CreateCategoryRequest represents the request payload for creating a category.
// Field rules are enforced by the service so that every violation is reported.
type CreateCategoryRequest struct {
	Name        string  `json:"name"`
	ParentID    *string `json:"parent_id"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Color       string  `json:"color"`
}

// UpdateCategoryRequest represents the request payload for editing display fields.
type UpdateCategoryRequest struct {
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
}

// RenameCategoryRequest represents the request payload for renaming a category.
type RenameCategoryRequest struct {
	Name string `json:"name"`
}

// MoveCategoryRequest represents the request payload for reparenting a
// category. A null parent_id moves the category to the root level.
type MoveCategoryRequest struct {
	ParentID *string `json:"parent_id"`
}

// BulkDeleteRequest represents the request payload for deleting several categories.
type BulkDeleteRequest struct {
	IDs     []string `json:"ids" binding:"required,min=1,max=200,dive,uuid"`
	Cascade bool     `json:"cascade"`
}

// ListCategoriesQuery holds the filters accepted by the flat listing.
type ListCategoriesQuery struct {
	Status    string `form:"status" binding:"omitempty,category_status"`
	ParentID  string `form:"parent_id" binding:"omitempty,uuid"`
	RootsOnly bool   `form:"roots_only"`
	Search    string `form:"search" binding:"omitempty,max=100"`
}

// TotalExpenseResponse is returned by the expense total endpoint.
type TotalExpenseResponse struct {
	CategoryID      string `json:"category_id"`
	Total           string `json:"total"`
	Count           int64  `json:"count"`
	IncludeChildren bool   `json:"include_children"`
}

// CreateCategory handles the creation of a new category.
// @Summary     Create a category
// @Description Create a new expense category, optionally under a parent
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCategoryRequest true "Category details"
// @Success     201 {object} models.Category "Category created"
// @Failure     400 {object} ErrorResponse "Validation failed"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     503 {object} ErrorResponse "Storage unavailable"
// @Router      /categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	category, err := h.categoryService.CreateCategory(c.Request.Context(), userID, services.CreateCategoryInput{
		Name:        req.Name,
		ParentID:    req.ParentID,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionCreate, services.AuditResourceCategory, category.ID, c.ClientIP(),
		map[string]any{"name": category.Name, "parent_id": category.ParentID})

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// GetUserCategories handles the flat, paginated category listing.
// @Summary     List categories
// @Description Get a paginated flat list of the user's categories
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       status     query string false "Filter by status (active/inactive)"
// @Param       parent_id  query string false "Only children of this category"
// @Param       roots_only query bool   false "Only root categories"
// @Param       search     query string false "Name contains"
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 50, max 200)"
// @Success     200 {object} pagination.PageResponse[models.Category] "Paginated categories"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /categories [get]
func (h *CategoryHandler) GetUserCategories(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindingError(err))
		return
	}
	var query ListCategoriesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	filter := repository.CategoryFilter{RootsOnly: query.RootsOnly, Search: query.Search}
	if query.Status != "" {
		status := models.CategoryStatus(query.Status)
		filter.Status = &status
	}
	if query.ParentID != "" {
		filter.ParentID = &query.ParentID
	}

	result, err := h.categoryService.GetUserCategories(c.Request.Context(), userID, filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTree handles the nested tree projection.
// @Summary     Category tree
// @Description Get the user's categories as a nested tree, siblings sorted by name
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       active_only query bool false "Omit inactive categories and their subtrees"
// @Success     200 {array} services.TreeNode "Root nodes"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /categories/tree [get]
func (h *CategoryHandler) GetTree(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	activeOnly, err := parseBoolQuery(c, "active_only", false)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tree, err := h.categoryService.BuildTree(c.Request.Context(), userID, activeOnly)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tree": tree})
}

// GetDropdown handles the flattened, indented option list.
// @Summary     Category dropdown options
// @Description Get the tree flattened in pre-order with depth-indented labels
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       exclude_id  query string false "Omit this category and its descendants"
// @Param       active_only query bool   false "Omit inactive categories (default true)"
// @Success     200 {array} services.DropdownOption "Options"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /categories/dropdown [get]
func (h *CategoryHandler) GetDropdown(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	activeOnly, err := parseBoolQuery(c, "active_only", true)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var excludeID *string
	if raw := c.Query("exclude_id"); raw != "" {
		excludeID = &raw
	}

	options, err := h.categoryService.FlattenForDropdown(c.Request.Context(), userID, excludeID, activeOnly)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"options": options})
}

// GetWidget handles the tree-widget projection.
// @Summary     Category tree widget data
// @Description Get the tree in the shape consumed by the tree widget
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       active_only query bool false "Omit inactive categories and their subtrees"
// @Success     200 {array} services.WidgetNode "Widget nodes"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /categories/widget [get]
func (h *CategoryHandler) GetWidget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	activeOnly, err := parseBoolQuery(c, "active_only", false)
	if err != nil {
		respondWithError(c, err)
		return
	}

	nodes, err := h.categoryService.WidgetProjection(c.Request.Context(), userID, activeOnly)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, nodes)
}

// GetCategoryByID handles the retrieval of a specific category.
// @Summary     Get category by ID
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} models.Category "Category"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id} [get]
func (h *CategoryHandler) GetCategoryByID(c *gin.Context) {
	userID, categoryID, ok := h.pathContext(c)
	if !ok {
		return
	}

	category, err := h.categoryService.GetCategoryByID(c.Request.Context(), userID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// UpdateCategory handles edits to description, icon and color.
// @Summary     Update a category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Category ID"
// @Param       request body UpdateCategoryRequest true "Fields to change"
// @Success     200 {object} models.Category "Updated category"
// @Failure     400 {object} ErrorResponse "Validation failed"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id} [put]
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	userID, categoryID, ok := h.pathContext(c)
	if !ok {
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	category, err := h.categoryService.UpdateCategory(c.Request.Context(), userID, categoryID, services.UpdateCategoryInput{
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionUpdate, services.AuditResourceCategory, categoryID, c.ClientIP(),
		map[string]any{"description": req.Description, "icon": req.Icon, "color": req.Color})

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// RenameCategory handles renaming a category in place.
// @Summary     Rename a category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true "Category ID"
// @Param       request body RenameCategoryRequest true "New name"
// @Success     200 {object} models.Category "Renamed category"
// @Failure     400 {object} ErrorResponse "Validation failed"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id}/name [patch]
func (h *CategoryHandler) RenameCategory(c *gin.Context) {
	userID, categoryID, ok := h.pathContext(c)
	if !ok {
		return
	}

	var req RenameCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	category, err := h.categoryService.RenameCategory(c.Request.Context(), userID, categoryID, req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionRename, services.AuditResourceCategory, categoryID, c.ClientIP(),
		map[string]any{"name": category.Name})

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// MoveCategory handles reparenting a category.
// @Summary     Move a category
// @Description Move a category (and its subtree) under another parent, or to the root with a null parent_id
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Category ID"
// @Param       request body MoveCategoryRequest true "New parent"
// @Success     200 {object} models.Category "Moved category"
// @Failure     400 {object} ErrorResponse "Validation failed"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id}/parent [patch]
func (h *CategoryHandler) MoveCategory(c *gin.Context) {
	userID, categoryID, ok := h.pathContext(c)
	if !ok {
		return
	}

	var req MoveCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	category, err := h.categoryService.MoveCategory(c.Request.Context(), userID, categoryID, req.ParentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionMove, services.AuditResourceCategory, categoryID, c.ClientIP(),
		map[string]any{"parent_id": category.ParentID})

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// ToggleStatus handles flipping a category between active and inactive.
// @Summary     Toggle category status
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} models.Category "Category with new status"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id}/toggle-status [post]
func (h *CategoryHandler) ToggleStatus(c *gin.Context) {
	userID, categoryID, ok := h.pathContext(c)
	if !ok {
		return
	}

	category, err := h.categoryService.ToggleStatus(c.Request.Context(), userID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionToggle, services.AuditResourceCategory, categoryID, c.ClientIP(),
		map[string]any{"status": category.Status})

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory handles deleting or deactivating a category.
// @Summary     Delete a category
// @Description Hard-deletes a category without expenses; categories with expenses are deactivated instead
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id      path  string true  "Category ID"
// @Param       cascade query bool   false "Apply to descendants instead of reparenting them"
// @Success     200 {object} services.DeleteOutcome "Outcome"
// @Failure     400 {object} ErrorResponse "Delete failed validation"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     503 {object} ErrorResponse "Storage unavailable"
// @Router      /categories/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	userID, categoryID, ok := h.pathContext(c)
	if !ok {
		return
	}
	cascade, err := parseBoolQuery(c, "cascade", false)
	if err != nil {
		respondWithError(c, err)
		return
	}

	outcome, err := h.categoryService.DeleteCategory(c.Request.Context(), userID, categoryID, cascade)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditActionDelete, services.AuditResourceCategory, categoryID, c.ClientIP(),
		map[string]any{"cascade": cascade, "state": outcome.State})

	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}

// BulkDeleteCategories handles deleting several categories in one request.
// @Summary     Bulk delete categories
// @Description Applies the single delete rules to each id and tallies the outcomes
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BulkDeleteRequest true "Category IDs"
// @Success     200 {object} services.BulkDeleteResult "Tallied outcomes"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /categories/bulk-delete [post]
func (h *CategoryHandler) BulkDeleteCategories(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	result := h.categoryService.BulkDeleteCategories(c.Request.Context(), userID, req.IDs, req.Cascade)

	h.auditService.Log(userID, services.AuditActionBulkDelete, services.AuditResourceCategory, "", c.ClientIP(),
		map[string]any{
			"ids":         req.IDs,
			"cascade":     req.Cascade,
			"deleted":     result.DeletedCount,
			"deactivated": result.DeactivatedCount,
			"failed":      result.FailedCount,
		})

	c.JSON(http.StatusOK, result)
}

// GetAncestors handles listing a category's ancestors, root first.
// @Summary     Category ancestors
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {array} models.Category "Ancestors, root first"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id}/ancestors [get]
func (h *CategoryHandler) GetAncestors(c *gin.Context) {
	userID, categoryID, ok := h.pathContext(c)
	if !ok {
		return
	}

	ancestors, err := h.categoryService.GetAncestors(c.Request.Context(), userID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ancestors": ancestors})
}

// GetDescendants handles listing the ids of a category's descendants.
// @Summary     Category descendant IDs
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {array} string "Descendant IDs in pre-order"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id}/descendants [get]
func (h *CategoryHandler) GetDescendants(c *gin.Context) {
	userID, categoryID, ok := h.pathContext(c)
	if !ok {
		return
	}

	ids, err := h.categoryService.GetDescendantIDs(c.Request.Context(), userID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"descendant_ids": ids})
}

// GetBreadcrumb handles the root-to-category name path.
// @Summary     Category breadcrumb
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {array} string "Names from root to category"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id}/breadcrumb [get]
func (h *CategoryHandler) GetBreadcrumb(c *gin.Context) {
	userID, categoryID, ok := h.pathContext(c)
	if !ok {
		return
	}

	path, err := h.categoryService.GetBreadcrumbPath(c.Request.Context(), userID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"breadcrumb": path})
}

// GetTotalExpense handles the expense total for a category.
// @Summary     Category expense total
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id               path  string true  "Category ID"
// @Param       from             query string false "Start date (YYYY-MM-DD or RFC3339)"
// @Param       to               query string false "End date, inclusive"
// @Param       include_children query bool   false "Include descendant categories (default true)"
// @Success     200 {object} TotalExpenseResponse "Total"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id}/total [get]
func (h *CategoryHandler) GetTotalExpense(c *gin.Context) {
	userID, categoryID, ok := h.pathContext(c)
	if !ok {
		return
	}
	rng, err := parseDateRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	includeChildren, err := parseBoolQuery(c, "include_children", true)
	if err != nil {
		respondWithError(c, err)
		return
	}

	total, err := h.categoryService.TotalExpense(c.Request.Context(), userID, categoryID, rng, includeChildren)
	if err != nil {
		respondWithError(c, err)
		return
	}
	count, err := h.categoryService.ExpenseCount(c.Request.Context(), userID, categoryID, rng, includeChildren)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, TotalExpenseResponse{
		CategoryID:      categoryID,
		Total:           total.StringFixed(2),
		Count:           count,
		IncludeChildren: includeChildren,
	})
}

// CanDelete reports whether a category can be hard-deleted.
// @Summary     Can a category be deleted
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Category ID"
// @Success     200 {object} map[string]bool "can_delete"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /categories/{id}/can-delete [get]
func (h *CategoryHandler) CanDelete(c *gin.Context) {
	userID, categoryID, ok := h.pathContext(c)
	if !ok {
		return
	}

	canDelete, err := h.categoryService.CanDelete(c.Request.Context(), userID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"can_delete": canDelete})
}

// pathContext resolves the caller and the :id parameter, writing the error
// response itself when either is missing.
func (h *CategoryHandler) pathContext(c *gin.Context) (string, string, bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return "", "", false
	}
	categoryID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return "", "", false
	}
	return userID, categoryID, true
}

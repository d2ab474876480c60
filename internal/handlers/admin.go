// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/services"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type AdminHandler struct {
	adminService    *services.AdminService
	activityService *services.ActivityService
}

func NewAdminHandler(adminService *services.AdminService, activityService *services.ActivityService) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		activityService: activityService,
	}
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}

// GET /admin/users?role=candidate&search=...
func (h *AdminHandler) GetUsers(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var role *models.UserRole
	if r := c.Query("role"); r != "" {
		ur := models.UserRole(r)
		role = &ur
	}

	users, total, err := h.adminService.ListUsers(c.Request.Context(), role, params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(users, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/users
func (h *AdminHandler) CreateUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.adminService.CreateUser(c.Request.Context(), actor.ID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, user)
}

// GET /admin/examiners?include_inactive=true
func (h *AdminHandler) GetExaminers(c *gin.Context) {
	examiners, err := h.adminService.ListExaminers(c.Request.Context(), c.Query("include_inactive") == "true")
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, examiners)
}

// POST /admin/examiners
func (h *AdminHandler) CreateExaminer(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	examiner, err := h.adminService.CreateExaminer(c.Request.Context(), actor.ID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, examiner)
}

// PUT /admin/examiners/:id/status
func (h *AdminHandler) UpdateExaminerStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "examiner")
	if !ok {
		return
	}

	var req services.SetActiveRequest
	if !bindJSON(c, &req) {
		return
	}

	examiner, err := h.adminService.SetExaminerActive(c.Request.Context(), actor.ID, id, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, examiner)
}

// GET /admin/activity?category=license&user_id=...
func (h *AdminHandler) GetActivity(c *gin.Context) {
	params := services.ActivitySearchParams{
		PaginationParams: utils.GetPaginationParams(c),
		Category:         c.Query("category"),
		Action:           c.Query("action"),
	}
	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid user_id", nil)
			return
		}
		params.UserID = &id
	}
	if v := c.Query("subject_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid subject_id", nil)
			return
		}
		params.SubjectID = &id
	}

	logs, total, err := h.activityService.List(c.Request.Context(), params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(logs, total, params.PaginationParams)
	utils.PaginatedResponse(c, result)
}

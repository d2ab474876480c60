// internal/handlers/exam.go
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/dlms-backend/internal/models"
	"github.com/javajoker/dlms-backend/internal/services"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type ExamHandler struct {
	scheduler *services.ExamScheduler
	sessions  *services.ExamSessionService
}

type ReviewExamRequest struct {
	Message string `json:"message,omitempty" validate:"max=2000"`
}

type FinalizeExamRequest struct {
	Score *float64 `json:"score" validate:"required"`
}

func NewExamHandler(scheduler *services.ExamScheduler, sessions *services.ExamSessionService) *ExamHandler {
	return &ExamHandler{scheduler: scheduler, sessions: sessions}
}

// POST /exams
func (h *ExamHandler) ScheduleExam(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.ScheduleExamRequest
	if !bindJSON(c, &req) {
		return
	}

	schedule, err := h.scheduler.ScheduleExam(c.Request.Context(), actor.ID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, schedule)
}

// GET /exams/me
func (h *ExamHandler) GetMyExams(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	schedules, err := h.scheduler.ListForCandidate(c.Request.Context(), actor.ID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, schedules)
}

// GET /exams/available
func (h *ExamHandler) GetAvailableExams(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	exams, err := h.sessions.ListAvailableExams(c.Request.Context(), actor.ID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, exams)
}

// GET /exams/:id
func (h *ExamHandler) GetExam(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "exam")
	if !ok {
		return
	}

	schedule, err := h.scheduler.GetForActor(c.Request.Context(), id, actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, schedule)
}

// GET /exams/:id/take?language=am
func (h *ExamHandler) TakeExam(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "exam")
	if !ok {
		return
	}

	language := c.DefaultQuery("language", utils.GetLangFromContext(c))
	sitting, err := h.sessions.GetExamForTaking(c.Request.Context(), id, actor.ID, language)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, sitting)
}

// POST /exams/:id/submit
func (h *ExamHandler) SubmitExam(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "exam")
	if !ok {
		return
	}

	var req services.SubmitResultRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.sessions.SubmitResult(c.Request.Context(), id, actor.ID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"score":  result.Result.Score,
		"passed": result.Result.Passed,
		"result": result.Result,
		"exam":   result.Schedule,
	})
}

// POST /exams/:id/cancel
func (h *ExamHandler) CancelExam(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "exam")
	if !ok {
		return
	}

	schedule, err := h.scheduler.Cancel(c.Request.Context(), id, actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, schedule)
}

// GET /examiner/exams
func (h *ExamHandler) GetAssignedExams(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	params := services.ScheduleSearchParams{PaginationParams: utils.GetPaginationParams(c)}
	params.Sort = c.DefaultQuery("sort", "scheduled_at")
	params.ExaminerID = &actor.ID
	if status := c.Query("status"); status != "" {
		s := models.ExamStatus(status)
		params.Status = &s
	}
	h.search(c, params)
}

// POST /examiner/exams/:id/evaluate
func (h *ExamHandler) EvaluateExam(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "exam")
	if !ok {
		return
	}

	var req services.EvaluationRequest
	if !bindJSON(c, &req) {
		return
	}

	schedule, err := h.scheduler.Complete(c.Request.Context(), id, actor, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, schedule)
}

// GET /admin/exams
func (h *ExamHandler) SearchExams(c *gin.Context) {
	params := services.ScheduleSearchParams{PaginationParams: utils.GetPaginationParams(c)}
	if t := c.Query("exam_type"); t != "" {
		examType := models.ExamType(t)
		params.ExamType = &examType
	}
	if status := c.Query("status"); status != "" {
		s := models.ExamStatus(status)
		params.Status = &s
	}
	h.search(c, params)
}

func (h *ExamHandler) search(c *gin.Context, params services.ScheduleSearchParams) {
	schedules, total, err := h.scheduler.Search(c.Request.Context(), params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(schedules, total, params.PaginationParams)
	utils.PaginatedResponse(c, result)
}

// PUT /admin/exams/:id/approve
func (h *ExamHandler) ApproveExam(c *gin.Context) {
	h.review(c, h.scheduler.Approve)
}

// PUT /admin/exams/:id/reject
func (h *ExamHandler) RejectExam(c *gin.Context) {
	h.review(c, h.scheduler.Reject)
}

type reviewAction func(ctx context.Context, scheduleID, adminID uuid.UUID, message string) (*models.ExamSchedule, error)

func (h *ExamHandler) review(c *gin.Context, action reviewAction) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "exam")
	if !ok {
		return
	}

	var req ReviewExamRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if err := utils.Validate(&req); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	schedule, err := action(c.Request.Context(), id, actor.ID, req.Message)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, schedule)
}

// PUT /admin/exams/:id/finalize
func (h *ExamHandler) FinalizeExam(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "exam")
	if !ok {
		return
	}

	var req FinalizeExamRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := utils.Validate(&req); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	schedule, err := h.scheduler.FinalizeResult(c.Request.Context(), id, actor.ID, *req.Score)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, schedule)
}

// PUT /admin/exams/:id/no-show
func (h *ExamHandler) MarkNoShow(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id", "exam")
	if !ok {
		return
	}

	schedule, err := h.scheduler.MarkNoShow(c.Request.Context(), id, actor.ID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, schedule)
}

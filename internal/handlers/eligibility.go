// internal/handlers/eligibility.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/dlms-backend/internal/services"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type EligibilityHandler struct {
	resolver *services.EligibilityResolver
}

func NewEligibilityHandler(resolver *services.EligibilityResolver) *EligibilityHandler {
	return &EligibilityHandler{resolver: resolver}
}

// GET /eligibility/me
func (h *EligibilityHandler) GetMyEligibility(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	h.respond(c, actor.ID)
}

// GET /admin/candidates/:id/eligibility
func (h *EligibilityHandler) GetCandidateEligibility(c *gin.Context) {
	id, ok := idParam(c, "id", "candidate")
	if !ok {
		return
	}
	h.respond(c, id)
}

func (h *EligibilityHandler) respond(c *gin.Context, candidateID uuid.UUID) {
	eligibility, err := h.resolver.Resolve(c.Request.Context(), candidateID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, eligibility)
}

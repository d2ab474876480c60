// internal/handlers/license.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/dlms-backend/internal/services"
	"github.com/javajoker/dlms-backend/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

type IssueCandidateLicenseRequest struct {
	Class string `json:"class,omitempty" validate:"omitempty,license_class"`
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

// POST /admin/licenses
// Issuing again for the same candidate returns the existing license with
// already_issued set; it is not an error.
func (h *LicenseHandler) IssueLicense(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.IssueLicenseRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.licenseService.IssueForPayment(c.Request.Context(), actor.ID, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /admin/candidates/:id/license
func (h *LicenseHandler) IssueCandidateLicense(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	candidateID, ok := idParam(c, "id", "candidate")
	if !ok {
		return
	}

	var req IssueCandidateLicenseRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if err := utils.Validate(&req); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result, err := h.licenseService.IssueLicense(c.Request.Context(), candidateID, actor.ID, req.Class)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// GET /admin/licenses
func (h *LicenseHandler) GetLicenses(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	licenses, total, err := h.licenseService.List(c.Request.Context(), params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(licenses, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /licenses/me
func (h *LicenseHandler) GetMyLicense(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	license, err := h.licenseService.GetCandidateLicense(c.Request.Context(), actor.ID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// GET /licenses/verify/:number (public)
func (h *LicenseHandler) VerifyLicense(c *gin.Context) {
	number := strings.ToUpper(strings.TrimSpace(c.Param("number")))

	verification, err := h.licenseService.VerifyLicenseNumber(c.Request.Context(), number)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, verification)
}

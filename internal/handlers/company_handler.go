package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"veriboard/internal/models"
)

// CompanyHandler serves the employer side: own profile and incoming requests.
type CompanyHandler struct {
	service VerificationService
}

func NewCompanyHandler(service VerificationService) *CompanyHandler {
	return &CompanyHandler{service: service}
}

// @Summary      Профиль компании
// @Tags         Companies
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /api/companies/me [get]
func (h *CompanyHandler) Me(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	company, err := h.service.MyCompany(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "company": company})
}

// @Summary      Отправить компанию на проверку
// @Tags         Companies
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        document  formData  file  true  "Registration document"
// @Success      200       {object}  map[string]interface{}
// @Failure      409       {object}  errorBody
// @Failure      413       {object}  errorBody
// @Router       /api/companies/me/verification [post]
func (h *CompanyHandler) SubmitVerification(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	doc, closeDoc, err := readDocument(c, h.service.MaxUploadBytes())
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeDoc()

	company, err := h.service.SubmitCompanyDocument(c.Request.Context(), actor, doc)
	if err != nil {
		respondError(c, err)
		return
	}
	logFields(c, logrus.Fields{"company_id": company.ID}).Info("[company][verification] document submitted")
	c.JSON(http.StatusOK, gin.H{"success": true, "company": company})
}

// @Summary      Запросы на подтверждение
// @Tags         Companies
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  errorBody
// @Router       /api/companies/verification-requests [get]
func (h *CompanyHandler) ListRequests(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	list, err := h.service.ListVerificationRequests(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []*models.Employment{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "requests": list})
}

// @Summary      Подтвердить запись о работе
// @Tags         Companies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int           true   "Employment ID"
// @Param        body  body      decisionBody  false  "Notes"
// @Success      200   {object}  map[string]interface{}
// @Failure      403   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /api/companies/verification-requests/{id}/approve [post]
func (h *CompanyHandler) Approve(c *gin.Context) { h.decide(c, true) }

// @Summary      Отклонить запись о работе
// @Tags         Companies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int           true  "Employment ID"
// @Param        body  body      decisionBody  true  "Reason"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /api/companies/verification-requests/{id}/reject [post]
func (h *CompanyHandler) Reject(c *gin.Context) { h.decide(c, false) }

func (h *CompanyHandler) decide(c *gin.Context, approve bool) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	body, ok := bindDecision(c)
	if !ok {
		return
	}
	e, err := h.service.EmployerDecide(c.Request.Context(), actor, id, approve, body.toModel())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "employment": e})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"veriboard/internal/models"
)

type AdminHandler struct {
	service VerificationService
}

func NewAdminHandler(service VerificationService) *AdminHandler {
	return &AdminHandler{service: service}
}

// @Summary      Подтвердить запись о работе (админ)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int           true   "Employment ID"
// @Param        body  body      decisionBody  false  "Notes"
// @Success      200   {object}  map[string]interface{}
// @Failure      409   {object}  errorBody
// @Router       /api/admin/employments/{id}/verify [post]
func (h *AdminHandler) VerifyEmployment(c *gin.Context) { h.decideEmployment(c, true) }

// @Summary      Отклонить запись о работе (админ)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int           true  "Employment ID"
// @Param        body  body      decisionBody  true  "Reason"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /api/admin/employments/{id}/reject [post]
func (h *AdminHandler) RejectEmployment(c *gin.Context) { h.decideEmployment(c, false) }

// @Summary      Компании на проверке
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /api/admin/companies/pending [get]
func (h *AdminHandler) PendingCompanies(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	list, err := h.service.ListPendingCompanies(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []*models.Company{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "companies": list})
}

// @Summary      Документ компании
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Company ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  errorBody
// @Router       /api/admin/companies/{id}/document [get]
func (h *AdminHandler) CompanyDocument(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	url, err := h.service.CompanyDocumentURL(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "url": url})
}

// @Summary      Подтвердить компанию
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int           true   "Company ID"
// @Param        body  body      decisionBody  false  "Notes"
// @Success      200   {object}  map[string]interface{}
// @Failure      409   {object}  errorBody
// @Router       /api/admin/companies/{id}/verify [post]
func (h *AdminHandler) VerifyCompany(c *gin.Context) { h.decideCompany(c, true) }

// @Summary      Отклонить компанию
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int           true  "Company ID"
// @Param        body  body      decisionBody  true  "Reason"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Router       /api/admin/companies/{id}/reject [post]
func (h *AdminHandler) RejectCompany(c *gin.Context) { h.decideCompany(c, false) }

func (h *AdminHandler) decideEmployment(c *gin.Context, approve bool) {
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
	e, err := h.service.AdminDecideEmployment(c.Request.Context(), actor, id, approve, body.toModel())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "employment": e})
}

func (h *AdminHandler) decideCompany(c *gin.Context, approve bool) {
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
	company, err := h.service.AdminDecideCompany(c.Request.Context(), actor, id, approve, body.toModel())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "company": company})
}

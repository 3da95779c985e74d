package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"veriboard/internal/models"
)

type EmploymentHandler struct {
	service VerificationService
}

func NewEmploymentHandler(service VerificationService) *EmploymentHandler {
	return &EmploymentHandler{service: service}
}

// @Summary      Добавить место работы
// @Description  Company name is matched against verified companies when company_id is absent
// @Tags         Employments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      models.CreateEmploymentRequest  true  "Employment record"
// @Success      201   {object}  map[string]interface{}
// @Failure      400   {object}  errorBody
// @Failure      403   {object}  errorBody
// @Router       /api/candidates/me/employments [post]
func (h *EmploymentHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req models.CreateEmploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	e, err := h.service.CreateEmployment(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "employment": e})
}

// @Summary      Мои места работы
// @Tags         Employments
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /api/candidates/me/employments [get]
func (h *EmploymentHandler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	list, err := h.service.ListEmployments(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []*models.Employment{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "employments": list})
}

// @Summary      Загрузить подтверждающий документ
// @Tags         Employments
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id        path      int   true  "Employment ID"
// @Param        document  formData  file  true  "PDF, PNG or JPEG"
// @Success      200       {object}  map[string]interface{}
// @Failure      400       {object}  errorBody
// @Failure      409       {object}  errorBody
// @Failure      413       {object}  errorBody
// @Router       /api/candidates/me/employments/{id}/document [post]
func (h *EmploymentHandler) SubmitDocument(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	doc, closeDoc, err := readDocument(c, h.service.MaxUploadBytes())
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeDoc()

	e, err := h.service.SubmitEmploymentDocument(c.Request.Context(), actor, id, doc)
	if err != nil {
		respondError(c, err)
		return
	}
	logFields(c, logrus.Fields{"employment_id": id, "size": doc.Size, "content_type": doc.ContentType}).Info("[employment][document] uploaded")
	c.JSON(http.StatusOK, gin.H{"success": true, "employment": e})
}

// @Summary      Ссылка на документ
// @Description  Short-lived presigned download URL
// @Tags         Employments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Employment ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /api/employments/{id}/document [get]
func (h *EmploymentHandler) DocumentURL(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	url, err := h.service.DocumentURL(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "url": url})
}

// @Summary      Сертификат о подтверждении
// @Tags         Employments
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path  int  true  "Employment ID"
// @Success      200  {file}    binary
// @Failure      409  {object}  errorBody
// @Router       /api/employments/{id}/certificate [get]
func (h *EmploymentHandler) Certificate(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.service.WriteCertificate(c.Request.Context(), actor, id, &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="employment-%d-certificate.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"veriboard/internal/middleware"
	"veriboard/internal/services"
)

func actorFrom(c *gin.Context) (services.Actor, bool) {
	userID, accountType, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
		return services.Actor{}, false
	}
	return services.Actor{UserID: userID, AccountType: accountType}, true
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid " + name})
		return 0, false
	}
	return id, true
}

// bindDecision accepts an empty body for approvals.
func bindDecision(c *gin.Context) (decisionBody, bool) {
	var body decisionBody
	if c.Request.ContentLength == 0 {
		return body, true
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return body, true
		}
		respondError(c, err)
		return body, false
	}
	return body, true
}

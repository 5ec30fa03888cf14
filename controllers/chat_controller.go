package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/services"
)

// AccessTokenHeader carries a chat access token on transcript reads.
const AccessTokenHeader = "X-Chat-Access-Token"

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// GrantAccessRequest lets a customer hand an admin temporary read access
type GrantAccessRequest struct {
	AdminID     uint   `json:"admin_id" binding:"required"`
	AccessHours int    `json:"access_hours" binding:"required,gt=0"`
	Reason      string `json:"reason"`
	Response    string `json:"customer_response"`
}

func chatService() *services.ChatService {
	return services.NewChatService(config.GetDB())
}

func chatAccessService() *services.ChatAccessService {
	return services.NewChatAccessService(config.GetDB(), chatAccessMaxHours())
}

// OpenConversation handles POST /api/v1/orders/:id/conversation. Repeated calls
// return the same conversation.
func OpenConversation(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	conv, err := chatService().OpenConversation(c.Request.Context(), actor, orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, conv)
}

// SendMessage handles POST /api/v1/conversations/:id/messages
func SendMessage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	conversationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	msg, err := chatService().SendMessage(c.Request.Context(), actor, conversationID, req.Content)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, msg)
}

// ListMessages handles GET /api/v1/conversations/:id/messages
func ListMessages(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	conversationID, ok := idParam(c, "id")
	if !ok {
		return
	}

	msgs, err := chatService().ListMessages(c.Request.Context(), actor, conversationID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, msgs)
}

// GrantChatAccess handles POST /api/v1/conversations/:id/access-grants (customers only).
// The token in the response is shown once.
func GrantChatAccess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	conversationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req GrantAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	result, err := chatAccessService().Grant(c.Request.Context(), actor, conversationID, services.GrantInput{
		AdminID:     req.AdminID,
		AccessHours: req.AccessHours,
		Reason:      req.Reason,
		Response:    req.Response,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, result)
}

// RevokeChatAccess handles DELETE /api/v1/conversations/:id/access-grants (customers only)
func RevokeChatAccess(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	conversationID, ok := idParam(c, "id")
	if !ok {
		return
	}

	access, err := chatAccessService().Revoke(c.Request.Context(), actor, conversationID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, access)
}

// ListChatAccessGrants handles GET /api/v1/conversations/:id/access-grants (customers only)
func ListChatAccessGrants(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	conversationID, ok := idParam(c, "id")
	if !ok {
		return
	}

	grants, err := chatAccessService().ListGrants(c.Request.Context(), actor, conversationID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, grants)
}

// ReadTranscript handles GET /api/v1/admin/conversations/:id/transcript (admins only).
// The token comes from the X-Chat-Access-Token header.
func ReadTranscript(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	conversationID, ok := idParam(c, "id")
	if !ok {
		return
	}

	token := strings.TrimSpace(c.GetHeader(AccessTokenHeader))
	transcript, err := chatAccessService().ReadTranscript(c.Request.Context(), actor, conversationID, token)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, transcript)
}

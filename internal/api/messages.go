package api

import (
	"errors"
	"net/http"
	"strconv"

	"flowchat-gateway/internal/gateway"
	"flowchat-gateway/internal/ledger"
	"flowchat-gateway/internal/models"
	"flowchat-gateway/internal/phone"

	"github.com/gin-gonic/gin"
)

// MessageHandler exposes the send and conversation endpoints.
type MessageHandler struct {
	Facade *gateway.Facade
	Ledger *ledger.Ledger
}

func NewMessageHandler(facade *gateway.Facade, ldg *ledger.Ledger) *MessageHandler {
	return &MessageHandler{Facade: facade, Ledger: ldg}
}

type SendRequest struct {
	To        string                 `json:"to" binding:"required"`
	Body      string                 `json:"body"`
	Type      string                 `json:"type"`
	MediaURLs []string               `json:"media_urls"`
	MediaType string                 `json:"media_type"`
	SenderID  string                 `json:"sender_id"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.Body == "" && len(req.MediaURLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "body or media_urls required"})
		return
	}

	result, err := h.Facade.Send(c.Request.Context(), gateway.SendParams{
		To:        req.To,
		Content:   req.Body,
		Type:      models.MessageType(req.Type),
		MediaURLs: req.MediaURLs,
		MediaType: req.MediaType,
		SenderID:  req.SenderID,
		Metadata:  req.Metadata,
	})
	if err != nil {
		if errors.Is(err, phone.ErrInvalidNumber) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	c.JSON(status, result)
}

type SendTemplateRequest struct {
	To           string            `json:"to" binding:"required"`
	TemplateName string            `json:"template_name" binding:"required"`
	LanguageCode string            `json:"language_code"`
	Parameters   map[string]string `json:"parameters"`
	SenderID     string            `json:"sender_id"`
}

func (h *MessageHandler) SendTemplate(c *gin.Context) {
	var req SendTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := h.Facade.SendTemplate(c.Request.Context(), gateway.TemplateParams{
		To:           req.To,
		TemplateName: req.TemplateName,
		LanguageCode: req.LanguageCode,
		Parameters:   req.Parameters,
		SenderID:     req.SenderID,
	})
	if err != nil {
		if errors.Is(err, phone.ErrInvalidNumber) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	c.JSON(status, result)
}

// GetConversation returns the messages exchanged with one contact, newest
// first.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	contactID := c.Query("contact_id")
	if contactID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "contact_id is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	msgs, err := h.Ledger.FindConversation(c.Request.Context(), contactID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

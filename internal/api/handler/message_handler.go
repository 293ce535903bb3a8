package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/friendlyvoice/pkg/response"
)

type sendMessageRequest struct {
	// 已上传录音的地址或录音 data URI
	VoiceURL string `json:"voiceUrl" binding:"required"`
}

// Conversations 会话列表（最近的在前）
// @Summary 会话列表
// @Tags 私信
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.Chat}
// @Router /api/v1/messages [get]
func (h *Handler) Conversations(c *gin.Context) {
	chats, err := sess(c).Conversations()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, chats)
}

// Thread 与 user_id 的会话消息（按时间升序）
// @Summary 会话消息
// @Tags 私信
// @Security BearerAuth
// @Param user_id path string true "对方用户ID"
// @Success 200 {object} response.Response{data=[]model.Message}
// @Router /api/v1/messages/{user_id} [get]
func (h *Handler) Thread(c *gin.Context) {
	msgs, err := sess(c).LoadMessages(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msgs)
}

// SendMessage 发送语音私信
// @Summary 发送私信
// @Tags 私信
// @Security BearerAuth
// @Accept json
// @Param user_id path string true "接收者ID"
// @Param request body sendMessageRequest true "语音"
// @Success 201 {object} response.Response{data=model.Message}
// @Failure 400 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/messages/{user_id} [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	voiceURL, err := h.storeAudio(ctx, req.VoiceURL)
	if err != nil {
		response.Error(c, err)
		return
	}
	msg, err := sess(c).SendMessage(ctx, c.Param("user_id"), voiceURL)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

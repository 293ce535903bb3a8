package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/friendlyvoice/internal/model"
	"github.com/d60-Lab/friendlyvoice/pkg/response"
)

type avatarRequest struct {
	AvatarURL string `json:"avatarUrl" binding:"required,url,imghost"`
}

// Me 当前用户资料
// @Summary 我的资料
// @Tags 资料
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.User}
// @Failure 401 {object} response.Response
// @Router /api/v1/me [get]
func (h *Handler) Me(c *gin.Context) {
	u := sess(c).Identity()
	if u == nil {
		response.Unauthorized(c, "not authenticated")
		return
	}
	response.Success(c, u)
}

// UpdateProfile 部分更新资料
// @Summary 更新资料
// @Tags 资料
// @Security BearerAuth
// @Accept json
// @Param request body model.ProfileUpdate true "要修改的字段"
// @Success 200 {object} response.Response{data=model.User}
// @Failure 400 {object} response.Response
// @Router /api/v1/me [patch]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req model.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := sess(c).UpdateProfile(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// UpdateAvatar 更换头像（仅允许白名单图片来源）
// @Summary 更换头像
// @Tags 资料
// @Security BearerAuth
// @Accept json
// @Param request body avatarRequest true "头像地址"
// @Success 200 {object} response.Response{data=model.User}
// @Failure 400 {object} response.Response
// @Router /api/v1/me/avatar [put]
func (h *Handler) UpdateAvatar(c *gin.Context) {
	var req avatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := sess(c).UpdateAvatar(c.Request.Context(), req.AvatarURL)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// CompleteOnboarding 提交引导数据；bioSoundUrl 可以是录音的 data URI
// @Summary 完成引导
// @Tags 资料
// @Security BearerAuth
// @Accept json
// @Param request body model.Onboarding true "引导数据"
// @Success 200 {object} response.Response{data=model.User}
// @Failure 400 {object} response.Response
// @Router /api/v1/me/onboarding [post]
func (h *Handler) CompleteOnboarding(c *gin.Context) {
	var req model.Onboarding
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	soundURL, err := h.storeAudio(ctx, req.BioSoundURL)
	if err != nil {
		response.Error(c, err)
		return
	}
	req.BioSoundURL = soundURL
	u, err := sess(c).CompleteOnboarding(ctx, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"user": u, "view": sess(c).View()})
}

// GetUser 按 ID 查询用户资料
// @Summary 查询用户
// @Tags 资料
// @Security BearerAuth
// @Param user_id path string true "用户ID"
// @Success 200 {object} response.Response{data=model.User}
// @Failure 404 {object} response.Response
// @Router /api/v1/users/{user_id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	u, err := sess(c).GetUserByID(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// UserVoces 某用户发布的动态
// @Summary 用户的语音动态
// @Tags 动态
// @Security BearerAuth
// @Param user_id path string true "用户ID"
// @Success 200 {object} response.Response{data=[]model.Voz}
// @Router /api/v1/users/{user_id}/voces [get]
func (h *Handler) UserVoces(c *gin.Context) {
	viewerID := ""
	if u := sess(c).Identity(); u != nil {
		viewerID = u.ID
	}
	response.Success(c, h.feed.ByAuthor(c.Param("user_id"), viewerID))
}

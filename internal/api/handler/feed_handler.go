package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/pkg/response"
)

type publishRequest struct {
	AudioURL string `json:"audioUrl" binding:"required"`
	Caption  string `json:"caption" binding:"max=1000"`
}

type commentRequest struct {
	Text string `json:"text" binding:"required"`
}

// Feed 动态流：关注的人在前，各自按时间倒序
// @Summary 动态流
// @Tags 动态
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.Voz}
// @Router /api/v1/feed [get]
func (h *Handler) Feed(c *gin.Context) {
	response.Success(c, h.feed.Feed(sess(c).Identity()))
}

// Publish 发布语音动态
// @Summary 发布动态
// @Tags 动态
// @Security BearerAuth
// @Accept json
// @Param request body publishRequest true "动态内容"
// @Success 201 {object} response.Response{data=model.Voz}
// @Failure 400 {object} response.Response
// @Router /api/v1/voces [post]
func (h *Handler) Publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	author := sess(c).Identity()
	if author == nil {
		response.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	ctx := c.Request.Context()
	audioURL, err := h.storeAudio(ctx, req.AudioURL)
	if err != nil {
		response.Error(c, err)
		return
	}
	v, err := h.feed.Publish(ctx, author, audioURL, req.Caption)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, v)
}

// GetVoz 单条动态
// @Summary 动态详情
// @Tags 动态
// @Security BearerAuth
// @Param voz_id path string true "动态ID"
// @Success 200 {object} response.Response{data=model.Voz}
// @Failure 404 {object} response.Response
// @Router /api/v1/voces/{voz_id} [get]
func (h *Handler) GetVoz(c *gin.Context) {
	v, err := h.feed.Get(c.Param("voz_id"), viewerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, v)
}

// ToggleLike 点赞 / 取消点赞
// @Summary 切换点赞
// @Tags 动态
// @Security BearerAuth
// @Param voz_id path string true "动态ID"
// @Success 200 {object} response.Response{data=model.Voz}
// @Failure 404 {object} response.Response
// @Router /api/v1/voces/{voz_id}/like [post]
func (h *Handler) ToggleLike(c *gin.Context) {
	v, err := h.feed.ToggleLike(c.Request.Context(), viewerID(c), c.Param("voz_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, v)
}

// Comments 评论列表（按发表顺序）
// @Summary 评论列表
// @Tags 动态
// @Security BearerAuth
// @Param voz_id path string true "动态ID"
// @Success 200 {object} response.Response{data=[]model.Comment}
// @Router /api/v1/voces/{voz_id}/comments [get]
func (h *Handler) Comments(c *gin.Context) {
	list, err := h.feed.Comments(c.Param("voz_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// AddComment 发表评论
// @Summary 发表评论
// @Tags 动态
// @Security BearerAuth
// @Accept json
// @Param voz_id path string true "动态ID"
// @Param request body commentRequest true "评论内容"
// @Success 201 {object} response.Response{data=model.Comment}
// @Failure 400 {object} response.Response
// @Router /api/v1/voces/{voz_id}/comments [post]
func (h *Handler) AddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cm, err := h.feed.AddComment(c.Request.Context(), sess(c).Identity(), c.Param("voz_id"), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cm)
}

func viewerID(c *gin.Context) string {
	if u := sess(c).Identity(); u != nil {
		return u.ID
	}
	return ""
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/pkg/response"
)

// Follow 关注用户（先写自己的 following，再写对方的 followers）
// @Summary 关注用户
// @Tags 关系链
// @Security BearerAuth
// @Produce json
// @Param user_id path string true "目标用户ID"
// @Success 200 {object} response.Response{data=model.User}
// @Failure 401 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/relations/{user_id}/follow [post]
func (h *Handler) Follow(c *gin.Context) {
	u, err := sess(c).Follow(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		relationError(c, err)
		return
	}
	response.Success(c, u)
}

// Unfollow 取消关注
// @Summary 取消关注
// @Tags 关系链
// @Security BearerAuth
// @Produce json
// @Param user_id path string true "目标用户ID"
// @Success 200 {object} response.Response{data=model.User}
// @Failure 401 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/relations/{user_id}/follow [delete]
func (h *Handler) Unfollow(c *gin.Context) {
	u, err := sess(c).Unfollow(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		relationError(c, err)
		return
	}
	response.Success(c, u)
}

// relationError 对方文档写入失败时本地关注已生效，响应中标明不一致
func relationError(c *gin.Context, err error) {
	var pe *apperr.PersistenceError
	if errors.As(err, &pe) && pe.Diverged {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadGateway, response.Response{
			Code:    response.CodeBadGateway,
			Message: pe.Error(),
			Data:    gin.H{"diverged": true, "collection": pe.Collection, "id": pe.ID},
		})
		return
	}
	response.Error(c, err)
}

// FollowStatus 当前用户是否关注了 user_id
// @Summary 关注状态
// @Tags 关系链
// @Security BearerAuth
// @Param user_id path string true "目标用户ID"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/relations/{user_id}/status [get]
func (h *Handler) FollowStatus(c *gin.Context) {
	target := c.Param("user_id")
	response.Success(c, gin.H{"user_id": target, "following": sess(c).IsFollowing(target)})
}

// Mutual 互相关注的用户
// @Summary 互关列表
// @Tags 关系链
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.User}
// @Router /api/v1/relations/mutual [get]
func (h *Handler) Mutual(c *gin.Context) {
	response.Success(c, sess(c).MutualFollows(c.Request.Context()))
}

// ListFollowing 查询某用户关注的人
// @Summary 查询关注列表
// @Tags 关系链
// @Security BearerAuth
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/relations/{user_id}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.graph.Following(c.Request.Context(), c.Param("user_id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// ListFollowers 查询某用户的粉丝
// @Summary 查询粉丝列表
// @Tags 关系链
// @Security BearerAuth
// @Param user_id path string true "用户ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/relations/{user_id}/followers [get]
func (h *Handler) ListFollowers(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.graph.Followers(c.Request.Context(), c.Param("user_id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/friendlyvoice/pkg/response"
)

// Ecosystems 主题语音房间目录
// @Summary 生态列表
// @Tags 生态
// @Security BearerAuth
// @Param active query bool false "仅返回活跃房间"
// @Success 200 {object} response.Response{data=[]model.Ecosystem}
// @Router /api/v1/ecosystems [get]
func (h *Handler) Ecosystems(c *gin.Context) {
	list, err := h.ecosystems.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// GetEcosystem 生态详情
// @Summary 生态详情
// @Tags 生态
// @Security BearerAuth
// @Param id path string true "生态ID"
// @Success 200 {object} response.Response{data=model.Ecosystem}
// @Failure 404 {object} response.Response
// @Router /api/v1/ecosystems/{id} [get]
func (h *Handler) GetEcosystem(c *gin.Context) {
	e, err := h.ecosystems.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, e)
}

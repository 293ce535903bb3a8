package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/friendlyvoice/internal/session"
	"github.com/d60-Lab/friendlyvoice/pkg/response"
)

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	Name        string `json:"name" binding:"omitempty,max=80"`
	DateOfBirth string `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Session   session.State `json:"session"`
}

// Signup 注册并登录，返回会话令牌
// @Summary 注册
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body signupRequest true "注册信息"
// @Success 201 {object} response.Response{data=sessionResponse}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/signup [post]
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	s, err := h.sessions.Open(ctx)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if _, err := s.Signup(ctx, req.Email, req.Password, req.Name, req.DateOfBirth); err != nil {
		h.sessions.Close(ctx, s.ID())
		response.Error(c, err)
		return
	}
	h.issue(c, s, true)
}

// Login 登录，返回会话令牌
// @Summary 登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录信息"
// @Success 200 {object} response.Response{data=sessionResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	s, err := h.sessions.Open(ctx)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if _, err := s.Login(ctx, req.Email, req.Password); err != nil {
		h.sessions.Close(ctx, s.ID())
		response.Error(c, err)
		return
	}
	h.issue(c, s, false)
}

func (h *Handler) issue(c *gin.Context, s *session.Session, created bool) {
	token, exp, err := h.sessions.Issue(s)
	if err != nil {
		h.sessions.Close(c.Request.Context(), s.ID())
		response.Error(c, err)
		return
	}
	data := sessionResponse{Token: token, ExpiresAt: exp, Session: s.State()}
	if created {
		response.Created(c, data)
		return
	}
	response.Success(c, data)
}

// Logout 退出并关闭会话
// @Summary 退出登录
// @Tags 认证
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /api/v1/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	s := sess(c)
	ctx := c.Request.Context()
	if err := s.Logout(ctx); err != nil {
		response.Error(c, err)
		return
	}
	h.sessions.Close(ctx, s.ID())
	response.Success(c, nil)
}

// VerifyEmail 邮件中的验证链接
// @Summary 验证邮箱
// @Tags 认证
// @Param token query string true "验证令牌"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/verify-email [get]
func (h *Handler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.BadRequest(c, "token is required")
		return
	}
	ident, err := h.backend.ConfirmEmail(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": ident.ID, "email": ident.Email, "emailVerified": ident.EmailVerified})
}

// Refresh 重新读取认证状态（邮箱验证之后调用）
// @Summary 刷新会话身份
// @Tags 认证
// @Security BearerAuth
// @Success 200 {object} response.Response{data=session.State}
// @Router /api/v1/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	s := sess(c)
	if _, err := s.Refresh(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, s.State())
}

type viewRequest struct {
	View string `json:"view" binding:"required"`
}

// GetSession 当前会话状态（身份、加载中、视图）
// @Summary 会话状态
// @Tags 会话
// @Security BearerAuth
// @Success 200 {object} response.Response{data=session.State}
// @Router /api/v1/session [get]
func (h *Handler) GetSession(c *gin.Context) {
	response.Success(c, sess(c).State())
}

// SetView 切换视图；路由规则可能将其重定向
// @Summary 切换视图
// @Tags 会话
// @Security BearerAuth
// @Accept json
// @Param request body viewRequest true "目标视图"
// @Success 200 {object} response.Response{data=session.State}
// @Failure 400 {object} response.Response
// @Router /api/v1/session/view [put]
func (h *Handler) SetView(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	v := session.View(req.View)
	if !v.Known() {
		response.BadRequest(c, "unknown view "+req.View)
		return
	}
	s := sess(c)
	s.SetView(v)
	response.Success(c, s.State())
}

package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/friendlyvoice/config"
	"github.com/d60-Lab/friendlyvoice/internal/api/middleware"
	"github.com/d60-Lab/friendlyvoice/internal/auth"
	"github.com/d60-Lab/friendlyvoice/internal/ecosystem"
	"github.com/d60-Lab/friendlyvoice/internal/feed"
	"github.com/d60-Lab/friendlyvoice/internal/media"
	"github.com/d60-Lab/friendlyvoice/internal/session"
	"github.com/d60-Lab/friendlyvoice/internal/social"
)

// Deps 处理器依赖
type Deps struct {
	Sessions   *session.Manager
	Backend    *auth.Backend
	Feed       *feed.Service
	Graph      *social.Graph
	Ecosystems *ecosystem.Catalogue
	Media      media.Store
	MediaCfg   config.MediaConfig
}

type Handler struct {
	sessions   *session.Manager
	backend    *auth.Backend
	feed       *feed.Service
	graph      *social.Graph
	ecosystems *ecosystem.Catalogue
	media      media.Store
	mediaCfg   config.MediaConfig
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		sessions:   d.Sessions,
		backend:    d.Backend,
		feed:       d.Feed,
		graph:      d.Graph,
		ecosystems: d.Ecosystems,
		media:      d.Media,
		mediaCfg:   d.MediaCfg,
	}
}

func sess(c *gin.Context) *session.Session { return middleware.Session(c) }

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return page, pageSize
}

package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/craft/internal/api/handlers/ad"
	"github.com/aliskhannn/craft/internal/middleware"
)

func Setup(h *ad.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	r.GET("/healthz", h.Health)
	r.POST("/generate-ad", h.Generate)

	api := r.Group("/api")

	api.POST("/generate-ad", h.Generate) // generating an ad
	api.GET("/ads", h.List)              // listing generated ads
	api.GET("/ads/:id", h.Get)           // getting ad by id
	api.DELETE("/ads/:id", h.Delete)     // deleting ad by id

	return r
}

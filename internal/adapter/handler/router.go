package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(h *HTTPHandler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Accept", idempotencyHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	r.Use(cors.New(corsConfig))

	r.GET("/health", h.HealthCheck)

	users := r.Group("/users")
	{
		users.POST("", wrap(h.CreateUser))
		users.GET("", wrap(h.ListUsers))
		users.GET("/:id", wrap(h.GetUser))
		users.PATCH("/:id", wrap(h.PatchUser))
		users.DELETE("/:id", wrap(h.DeleteUser))
	}

	products := r.Group("/products")
	{
		products.POST("", wrap(h.CreateProduct))
		products.GET("", wrap(h.ListProducts))
		products.GET("/:id", wrap(h.GetProduct))
		products.PATCH("/:id", wrap(h.PatchProduct))
		products.DELETE("/:id", wrap(h.DeleteProduct))
	}

	orders := r.Group("/orders")
	{
		orders.POST("", wrap(h.CreateOrder))
		orders.GET("", wrap(h.ListOrders))
		orders.GET("/:id", wrap(h.GetOrder))
	}

	return r
}

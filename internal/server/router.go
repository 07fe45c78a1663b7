package server

import (
	"bidbazaar/internal/auth"
	handler "bidbazaar/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(service handler.BiddingServiceInterface, tokens *auth.TokenService, limiter *RateLimiter) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestIDMiddleware)     // X-Request-ID propagation
	router.Use(RequestLoggerMiddleware) // custom request logging
	if limiter != nil {
		router.Use(limiter.Middleware())
	}

	biddingHandler := handler.NewBiddingHandler(service)
	requireAuth := JWTAuth(tokens)

	router.POST("/auth/login", biddingHandler.LoginHandler)

	bids := router.Group("/bids")
	bids.Use(requireAuth)
	{
		bids.POST("", biddingHandler.RecordBidHandler)
	}

	products := router.Group("/products")
	{
		products.GET("", biddingHandler.ListListingsHandler)
		products.GET("/:product_id", biddingHandler.GetListingHandler)
		products.GET("/:product_id/bids", biddingHandler.GetBidsByListingHandler)
		products.GET("/:product_id/winning", biddingHandler.GetWinningBidHandler)

		products.POST("", requireAuth, biddingHandler.CreateListingHandler)
		products.POST("/:product_id/approve", requireAuth, biddingHandler.ApproveListingHandler)
		products.POST("/:product_id/reject", requireAuth, biddingHandler.RejectListingHandler)
		products.POST("/:product_id/relist", requireAuth, biddingHandler.RelistHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/bids", biddingHandler.GetBidsByUserHandler)
	}

	return router
}

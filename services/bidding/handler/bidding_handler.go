package handler

import (
	"fmt"
	"net/http"
	"time"

	auction "bidbazaar/internal/auctionService"
	"bidbazaar/internal/biddingerrors"
	"bidbazaar/internal/models"
	"bidbazaar/services/bidding/helpers"
	"bidbazaar/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type BiddingServiceInterface interface {
	Login(name, password string) (string, time.Time, models.User, error)
	ListListings(status models.ListingStatus) ([]models.Listing, error)
	GetListing(listingID string) (models.Listing, error)
	CreateListing(actor models.User, req auction.NewListing) (models.Listing, error)
	Approve(actor models.User, listingID string) (models.Listing, error)
	Reject(actor models.User, listingID string) (models.Listing, error)
	Relist(actor models.User, listingID string, startingPrice decimal.Decimal, duration time.Duration) (models.Listing, error)
	PlaceBid(actor models.User, listingID string, amount decimal.Decimal) (models.Bid, error)
	GetBidsForListing(listingID string) ([]models.Bid, error)
	GetWinningBid(listingID string) (models.Bid, error)
	GetBidsByUser(userID string) ([]models.Bid, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// actor returns the caller set by the auth middleware or writes a 401
func actor(c *gin.Context, handlerName string) (models.User, bool) {
	user, ok := helpers.CurrentUser(c)
	if !ok {
		helpers.RespondError(c, handlerName, fmt.Errorf("%w - no caller on request", biddingerrors.ErrUnauthorized), nil)
		return models.User{}, false
	}
	return user, true
}

// LoginHandler handles POST /auth/login
func (h *BiddingHandler) LoginHandler(c *gin.Context) {
	var req helpers.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "LoginHandler", err)
		return
	}

	token, exp, user, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		helpers.RespondError(c, "LoginHandler", err, map[string]any{"username": req.Username})
		return
	}

	resp := helpers.LoginResponse{
		Token:     token,
		ExpiresAt: exp.UTC().Format(time.RFC3339),
		UserID:    user.UserID,
		Name:      user.Name,
		Role:      string(user.Role),
	}
	utils.JSONResponse(c, http.StatusOK, resp, "logged in")
	helpers.LogSuccess("LoginHandler", "user logged in", map[string]any{"user_id": user.UserID})
}

// ListListingsHandler handles GET /products
func (h *BiddingHandler) ListListingsHandler(c *gin.Context) {
	status := models.ListingStatus(c.Query("status"))
	listings, err := h.service.ListListings(status)
	if err != nil {
		helpers.RespondError(c, "ListListingsHandler", err, map[string]any{"status_filter": status})
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}

	utils.JSONResponse(c, http.StatusOK, listings, "products retrieved successfully")
}

// GetListingHandler handles GET /products/:product_id
func (h *BiddingHandler) GetListingHandler(c *gin.Context) {
	listingID := c.Param("product_id")
	listing, err := h.service.GetListing(listingID)
	if err != nil {
		helpers.RespondError(c, "GetListingHandler", err, map[string]any{"product_id": listingID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, listing, "product retrieved successfully")
}

// CreateListingHandler handles POST /products
func (h *BiddingHandler) CreateListingHandler(c *gin.Context) {
	user, ok := actor(c, "CreateListingHandler")
	if !ok {
		return
	}

	var req helpers.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateListingHandler", err)
		return
	}

	listing, err := h.service.CreateListing(user, auction.NewListing{
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		Duration:      time.Duration(req.DurationSeconds) * time.Second,
	})
	if err != nil {
		helpers.RespondError(c, "CreateListingHandler", err, map[string]any{"user_id": user.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, listing, "product created, awaiting approval")
	helpers.LogSuccess("CreateListingHandler", "product created", map[string]any{
		"product_id":     listing.ListingID,
		"vendor_id":      user.UserID,
		"starting_price": listing.StartingPrice.String(),
	})
}

// ApproveListingHandler handles POST /products/:product_id/approve
func (h *BiddingHandler) ApproveListingHandler(c *gin.Context) {
	h.review(c, "ApproveListingHandler", h.service.Approve)
}

// RejectListingHandler handles POST /products/:product_id/reject
func (h *BiddingHandler) RejectListingHandler(c *gin.Context) {
	h.review(c, "RejectListingHandler", h.service.Reject)
}

func (h *BiddingHandler) review(c *gin.Context, handlerName string, fn func(models.User, string) (models.Listing, error)) {
	user, ok := actor(c, handlerName)
	if !ok {
		return
	}

	listingID := c.Param("product_id")
	listing, err := fn(user, listingID)
	if err != nil {
		helpers.RespondError(c, handlerName, err, map[string]any{"product_id": listingID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, listing, "product "+string(listing.Status))
	helpers.LogSuccess(handlerName, "product reviewed", map[string]any{"product_id": listingID, "status": listing.Status})
}

// RelistHandler handles POST /products/:product_id/relist
func (h *BiddingHandler) RelistHandler(c *gin.Context) {
	user, ok := actor(c, "RelistHandler")
	if !ok {
		return
	}

	var req helpers.RelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RelistHandler", err)
		return
	}

	listingID := c.Param("product_id")
	listing, err := h.service.Relist(user, listingID, req.StartingPrice, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		helpers.RespondError(c, "RelistHandler", err, map[string]any{"product_id": listingID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, listing, "product relisted")
	helpers.LogSuccess("RelistHandler", "product relisted", map[string]any{"product_id": listingID})
}

// RecordBidHandler handles POST /bids
func (h *BiddingHandler) RecordBidHandler(c *gin.Context) {
	user, ok := actor(c, "RecordBidHandler")
	if !ok {
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RecordBidHandler", err)
		return
	}

	bid, err := h.service.PlaceBid(user, req.ProductID, req.Amount)
	if err != nil {
		helpers.RespondError(c, "RecordBidHandler", err, map[string]any{
			"product_id": req.ProductID,
			"user_id":    user.UserID,
			"amount":     req.Amount.String(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, bid, "bid recorded successfully")
	helpers.LogSuccess("RecordBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":     bid.BidID,
		"product_id": bid.ListingID,
		"user_id":    user.UserID,
		"amount":     bid.Amount.String(),
	})
}

// GetBidsByListingHandler handles GET /products/:product_id/bids
func (h *BiddingHandler) GetBidsByListingHandler(c *gin.Context) {
	listingID := c.Param("product_id")
	bids, err := h.service.GetBidsForListing(listingID)
	if err != nil {
		helpers.RespondError(c, "GetBidsByListingHandler", err, map[string]any{"product_id": listingID})
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByListingHandler", "bids retrieved successfully", map[string]any{
		"product_id": listingID,
		"count":      len(bids),
	})
}

// GetWinningBidHandler handles GET /products/:product_id/winning
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	listingID := c.Param("product_id")
	bid, err := h.service.GetWinningBid(listingID)
	if err != nil {
		helpers.RespondError(c, "GetWinningBidHandler", err, map[string]any{"product_id": listingID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, bid, "winning bid retrieved successfully")
}

// GetBidsByUserHandler handles GET /users/:user_id/bids
func (h *BiddingHandler) GetBidsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	bids, err := h.service.GetBidsByUser(userID)
	if err != nil {
		helpers.RespondError(c, "GetBidsByUserHandler", err, map[string]any{"user_id": userID})
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByUserHandler", "bids retrieved successfully", map[string]any{
		"user_id":    userID,
		"bids_count": len(bids),
	})
}

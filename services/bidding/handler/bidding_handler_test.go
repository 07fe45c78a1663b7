package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	auction "bidbazaar/internal/auctionService"
	"bidbazaar/internal/biddingerrors"
	"bidbazaar/internal/models"
	"bidbazaar/services/bidding/helpers"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testBuyer = models.User{UserID: "user1", Name: "bea", Role: models.RoleBuyer}

type decimalMatcher struct{ want decimal.Decimal }

func (m decimalMatcher) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalMatcher) String() string { return "is decimal " + m.want.String() }

func decimalEq(v string) gomock.Matcher { return decimalMatcher{want: decimal.RequireFromString(v)} }

// withUser stands in for the JWT middleware
func withUser(user models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		helpers.SetCurrentUser(c, user)
		c.Next()
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

// Test RecordBidHandler
func TestRecordBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	// Initialize Gin in test mode
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/bids", withUser(testBuyer), handler.RecordBidHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name:        "success_valid_bid",
			requestBody: `{"productId":"listing1","amount":105}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(testBuyer, "listing1", decimalEq("105")).
					Return(models.Bid{
						BidID:     uuid.NewString(),
						ListingID: "listing1",
						BidderID:  "user1",
						Amount:    decimal.NewFromInt(105),
						Status:    models.BidActive,
						CreatedAt: now,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
			validateData: func(t *testing.T, data map[string]any) {
				_, parseErr := uuid.Parse(data["id"].(string))
				require.NoError(t, parseErr, "bid id should be a valid UUID")
				require.Equal(t, "listing1", data["productId"])
				require.Equal(t, "user1", data["bidderId"])
				require.Equal(t, 105.0, data["amount"])
			},
		},
		{
			name:        "quoted_decimal_amount",
			requestBody: `{"productId":"listing1","amount":"110.50"}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(testBuyer, "listing1", decimalEq("110.5")).
					Return(models.Bid{BidID: uuid.NewString(), ListingID: "listing1", Amount: decimal.RequireFromString("110.5")}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "missing_product_id",
			requestBody:    `{"amount":105}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:        "bid_too_low",
			requestBody: `{"productId":"listing1","amount":100}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(testBuyer, "listing1", decimalEq("100")).
					Return(models.Bid{}, fmt.Errorf("service: %w", biddingerrors.ErrBidTooLow))
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "bid must be higher than the current price",
		},
		{
			name:        "auction_closed",
			requestBody: `{"productId":"listing1","amount":105}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(testBuyer, "listing1", decimalEq("105")).
					Return(models.Bid{}, biddingerrors.ErrListingNotActive)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "auction is not active",
		},
		{
			name:        "off_increment",
			requestBody: `{"productId":"listing1","amount":107}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(testBuyer, "listing1", decimalEq("107")).
					Return(models.Bid{}, biddingerrors.ErrInvalidBid)
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid bid details",
		},
		{
			name:        "unknown_product",
			requestBody: `{"productId":"listingX","amount":105}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(testBuyer, "listingX", decimalEq("105")).
					Return(models.Bid{}, biddingerrors.ErrListingNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "product not found",
		},
		{
			name:        "service_generic_error",
			requestBody: `{"productId":"listing1","amount":105}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(testBuyer, "listing1", decimalEq("105")).
					Return(models.Bid{}, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w, resp := doJSON(t, router, http.MethodPost, "/bids", tc.requestBody)
			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if w.Code >= http.StatusBadRequest {
				require.Equal(t, tc.expectedMsg, resp["error"])
			}
			if tc.validateData != nil && w.Code == http.StatusCreated {
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

// Test RecordBidHandler without an authenticated caller
func TestRecordBidHandler_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewBiddingHandler(NewMockBiddingServiceInterface(ctrl))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/bids", handler.RecordBidHandler)

	w, resp := doJSON(t, router, http.MethodPost, "/bids", `{"productId":"listing1","amount":105}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "authentication required", resp["error"])
}

// Test GetBidsByListingHandler
func TestGetBidsByListingHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/products/:product_id/bids", handler.GetBidsByListingHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		listingID      string
		mockSetup      func()
		expectedStatus int
		expectedCount  int
	}{
		{
			name:      "two_bids",
			listingID: "listing1",
			mockSetup: func() {
				mockService.EXPECT().GetBidsForListing("listing1").Return([]models.Bid{
					{BidID: "b2", ListingID: "listing1", Amount: decimal.NewFromInt(110), CreatedAt: now},
					{BidID: "b1", ListingID: "listing1", Amount: decimal.NewFromInt(105), CreatedAt: now.Add(-time.Second)},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:      "no_bids_yet",
			listingID: "listing2",
			mockSetup: func() {
				mockService.EXPECT().GetBidsForListing("listing2").Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  0,
		},
		{
			name:      "unknown_listing",
			listingID: "listingX",
			mockSetup: func() {
				mockService.EXPECT().GetBidsForListing("listingX").Return(nil, biddingerrors.ErrListingNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w, resp := doJSON(t, router, http.MethodGet, "/products/"+tc.listingID+"/bids", nil)
			require.Equal(t, tc.expectedStatus, w.Code)
			if w.Code == http.StatusOK {
				require.Len(t, resp["data"].([]any), tc.expectedCount)
			}
		})
	}
}

// Test listing lifecycle handlers
func TestListingHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	vendor := models.User{UserID: "vendor1", Name: "vic", Role: models.RoleVendor}
	admin := models.User{UserID: "admin1", Name: "ada", Role: models.RoleAdmin}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/products", handler.ListListingsHandler)
	router.GET("/products/:product_id", handler.GetListingHandler)
	router.POST("/products", withUser(vendor), handler.CreateListingHandler)
	router.POST("/products/:product_id/approve", withUser(admin), handler.ApproveListingHandler)
	router.POST("/products/:product_id/reject", withUser(vendor), handler.RejectListingHandler)
	router.POST("/products/:product_id/relist", withUser(vendor), handler.RelistHandler)

	listing := models.Listing{
		ListingID:     "listing1",
		Title:         "Lamp",
		VendorID:      vendor.UserID,
		Status:        models.ListingPending,
		StartingPrice: decimal.NewFromInt(100),
		CurrentPrice:  decimal.NewFromInt(100),
		EndTime:       time.Now().Add(time.Hour).UTC(),
	}

	t.Run("create", func(t *testing.T) {
		mockService.EXPECT().
			CreateListing(vendor, gomock.Any()).
			DoAndReturn(func(_ models.User, req auction.NewListing) (models.Listing, error) {
				require.Equal(t, "Lamp", req.Title)
				require.Equal(t, "100", req.StartingPrice.String())
				require.Equal(t, time.Hour, req.Duration)
				return listing, nil
			})

		w, resp := doJSON(t, router, http.MethodPost, "/products", `{"title":"Lamp","startingPrice":100,"durationSeconds":3600}`)
		require.Equal(t, http.StatusCreated, w.Code)
		data := resp["data"].(map[string]any)
		require.Equal(t, "pending", data["status"])
		require.Equal(t, 100.0, data["currentPrice"])
	})

	t.Run("create_zero_price", func(t *testing.T) {
		mockService.EXPECT().CreateListing(vendor, gomock.Any()).Return(models.Listing{}, biddingerrors.ErrInvalidStartingPrice)

		w, _ := doJSON(t, router, http.MethodPost, "/products", `{"title":"Lamp","startingPrice":0,"durationSeconds":3600}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("approve", func(t *testing.T) {
		approved := listing
		approved.Status = models.ListingActive
		mockService.EXPECT().Approve(admin, "listing1").Return(approved, nil)

		w, resp := doJSON(t, router, http.MethodPost, "/products/listing1/approve", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "product active", resp["message"])
	})

	t.Run("reject_forbidden", func(t *testing.T) {
		mockService.EXPECT().Reject(vendor, "listing1").Return(models.Listing{}, biddingerrors.ErrForbidden)

		w, _ := doJSON(t, router, http.MethodPost, "/products/listing1/reject", nil)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("relist_invalid_transition", func(t *testing.T) {
		mockService.EXPECT().
			Relist(vendor, "listing1", decimalEq("80"), 2*time.Hour).
			Return(models.Listing{}, biddingerrors.ErrInvalidTransition)

		w, _ := doJSON(t, router, http.MethodPost, "/products/listing1/relist", `{"startingPrice":80,"durationSeconds":7200}`)
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("get_and_list", func(t *testing.T) {
		mockService.EXPECT().GetListing("listing1").Return(listing, nil)
		mockService.EXPECT().ListListings(models.ListingActive).Return(nil, nil)

		w, resp := doJSON(t, router, http.MethodGet, "/products/listing1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "listing1", resp["data"].(map[string]any)["id"])

		w, resp = doJSON(t, router, http.MethodGet, "/products?status=active", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, resp["data"])
	})
}

// Test LoginHandler
func TestLoginHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/login", handler.LoginHandler)

	exp := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	mockService.EXPECT().Login("bea", "pw").Return("signed.token.value", exp, testBuyer, nil)
	mockService.EXPECT().Login("bea", "bad").Return("", time.Time{}, models.User{}, biddingerrors.ErrInvalidCredentials)

	w, resp := doJSON(t, router, http.MethodPost, "/auth/login", helpers.LoginRequest{Username: "bea", Password: "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	require.Equal(t, "signed.token.value", data["token"])
	require.Equal(t, "2026-03-01T13:00:00Z", data["expires_at"])

	w, resp = doJSON(t, router, http.MethodPost, "/auth/login", helpers.LoginRequest{Username: "bea", Password: "bad"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid username or password", resp["error"])

	w, _ = doJSON(t, router, http.MethodPost, "/auth/login", `{"username":"bea"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// Test GetBidsByUserHandler and GetWinningBidHandler
func TestUserAndWinningHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users/:user_id/bids", handler.GetBidsByUserHandler)
	router.GET("/products/:product_id/winning", handler.GetWinningBidHandler)

	mockService.EXPECT().GetBidsByUser("user1").Return([]models.Bid{{BidID: "b1"}}, nil)
	mockService.EXPECT().GetWinningBid("listing1").Return(models.Bid{}, biddingerrors.ErrNoBids)

	w, resp := doJSON(t, router, http.MethodGet, "/users/user1/bids", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 1)

	w, resp = doJSON(t, router, http.MethodGet, "/products/listing1/winning", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "no bids found for product", resp["error"])
}

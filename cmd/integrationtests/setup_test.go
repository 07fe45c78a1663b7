package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	auction "bidbazaar/internal/auctionService"
	"bidbazaar/internal/auth"
	model "bidbazaar/internal/models"
	"bidbazaar/internal/repository"
	"bidbazaar/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testSecret = "integration-secret"

// TestEnv is an in-memory API server with seeded users
type TestEnv struct {
	Router  *gin.Engine
	Repo    *repository.MemoryRepo
	Service *auction.AuctionService
	Tokens  *auth.TokenService
}

// SetupTestEnv initializes the router with in-memory repository for integration testing.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	repo.AddUser(model.User{UserID: "admin1", Name: "admin", Role: model.RoleAdmin}, "admin")
	repo.AddUser(model.User{UserID: "vendor1", Name: "vendor", Role: model.RoleVendor}, "vendor")
	repo.AddUser(model.User{UserID: "buyer1", Name: "alice", Role: model.RoleBuyer}, "alice")
	repo.AddUser(model.User{UserID: "buyer2", Name: "bob", Role: model.RoleBuyer}, "bob")

	tokens := auth.NewTokenService(testSecret, time.Hour)
	service := auction.NewAuctionService(repo, tokens)
	return &TestEnv{
		Router:  server.SetupRouter(service, tokens, nil),
		Repo:    repo,
		Service: service,
		Tokens:  tokens,
	}
}

// SeedListing adds an active listing owned by vendor1
func (e *TestEnv) SeedListing(t *testing.T, id string, startingPrice int64, endsIn time.Duration) model.Listing {
	t.Helper()
	now := time.Now().UTC()
	listing := model.Listing{
		ListingID:     id,
		Title:         "title " + id,
		Description:   "description " + id,
		VendorID:      "vendor1",
		Status:        model.ListingActive,
		StartingPrice: decimal.NewFromInt(startingPrice),
		CurrentPrice:  decimal.NewFromInt(startingPrice),
		EndTime:       now.Add(endsIn),
		CreatedAt:     now,
	}
	require.NoError(t, e.Repo.AddListing(listing))
	return listing
}

// Login returns a bearer token for the seeded user
func (e *TestEnv) Login(t *testing.T, name string) string {
	t.Helper()
	resp, w := e.Do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": name, "password": name})
	require.Equal(t, http.StatusOK, w.Code, "login %s", name)
	return resp["data"].(map[string]any)["token"].(string)
}

// Do executes an HTTP request on the router and parses the JSON response
func (e *TestEnv) Do(t *testing.T, method, url, token string, body any) (map[string]any, *httptest.ResponseRecorder) {
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

	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return resp, w
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	auction "bidbazaar/internal/auctionService"
	"bidbazaar/internal/auth"
	"bidbazaar/internal/config"
	model "bidbazaar/internal/models"
	"bidbazaar/internal/repository"
	"bidbazaar/internal/server"
	"bidbazaar/internal/settlement"
	"bidbazaar/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Fatal("failed to load configuration", map[string]any{"error": err.Error()})
	}
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		utils.Warn("keeping default log level", map[string]any{"error": err.Error()})
	}
	gin.SetMode(gin.ReleaseMode)

	repo := repository.NewMemoryRepo()
	prepopulate(repo, time.Now().UTC())

	tokens := auth.NewTokenService(cfg.Server.JWTSecret, cfg.Server.TokenTTL.Duration)
	auctionSvc := auction.NewAuctionService(repo, tokens)
	limiter := server.NewRateLimiter(cfg.Server.RateLimitPerMinute)

	router := server.SetupRouter(auctionSvc, tokens, limiter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go settlement.NewProcessor(auctionSvc, cfg.Server.SettlementInterval.Duration).Start(ctx)
	go cleanupVisitors(ctx, limiter)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("failed to start server", map[string]any{"error": err.Error()})
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Info("shutting down server", nil)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Fatal("server forced to shutdown", map[string]any{"error": err.Error()})
	}
	utils.Info("server exited", nil)
}

func cleanupVisitors(ctx context.Context, limiter *server.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			limiter.Cleanup(now)
		}
	}
}

// prepopulate adds demo users and listings to the in-memory repo
func prepopulate(repo *repository.MemoryRepo, now time.Time) {
	users := []struct {
		user     model.User
		password string
	}{
		{model.User{UserID: "admin1", Name: "admin", Role: model.RoleAdmin}, "admin"},
		{model.User{UserID: "vendor1", Name: "vendor", Role: model.RoleVendor}, "vendor"},
		{model.User{UserID: "buyer1", Name: "alice", Role: model.RoleBuyer}, "alice"},
		{model.User{UserID: "buyer2", Name: "bob", Role: model.RoleBuyer}, "bob"},
	}
	for _, u := range users {
		repo.AddUser(u.user, u.password)
	}

	listings := []model.Listing{
		{ListingID: "item1", Title: "Vintage camera", Description: "Working 35mm rangefinder", StartingPrice: decimal.NewFromInt(100), EndTime: now.Add(10 * time.Minute)},
		{ListingID: "item2", Title: "Oak desk", Description: "Solid oak, some wear", StartingPrice: decimal.NewFromInt(250), EndTime: now.Add(time.Hour)},
		{ListingID: "item3", Title: "Vinyl bundle", Description: "Twenty jazz records", StartingPrice: decimal.NewFromInt(40), EndTime: now.Add(2 * time.Minute)},
	}
	for _, l := range listings {
		l.VendorID = "vendor1"
		l.Status = model.ListingActive
		l.CurrentPrice = l.StartingPrice
		l.CreatedAt = now
		if err := repo.AddListing(l); err != nil {
			utils.Warn("failed to seed listing", map[string]any{"listing_id": l.ListingID, "error": err.Error()})
		}
	}
}

package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// simOrder is one submitted order progressing through the provider
// lifecycle on a timer.
type simOrder struct {
	Ref         string
	Kind        string
	Amount      decimal.Decimal
	SubmittedAt time.Time
	Failed      bool
}

// simPayment and simMandate resolve after a fixed delay from first sight.
type simPayment struct {
	Ref       string
	FirstSeen time.Time
	Failed    bool
}

type simMandate struct {
	ID        string
	FirstSeen time.Time
	Rejected  bool
}

// MockProvider simulates the fund house's order, payment, mandate and KYC
// APIs. State transitions are driven by wall-clock age so pollers observe
// a realistic progression.
type MockProvider struct {
	mu          sync.Mutex
	orders      map[string]*simOrder
	payments    map[string]*simPayment
	mandates    map[string]*simMandate
	successRate float64
	stageDelay  time.Duration
	providerID  string
	rng         *rand.Rand
}

func NewMockProvider(successRate float64, stageDelay time.Duration) *MockProvider {
	return &MockProvider{
		orders:      make(map[string]*simOrder),
		payments:    make(map[string]*simPayment),
		mandates:    make(map[string]*simMandate),
		successRate: successRate,
		stageDelay:  stageDelay,
		providerID:  "MOCK_PROVIDER_" + uuid.New().String()[:8],
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) shouldSucceed() bool {
	return m.rng.Float64() < m.successRate
}

// orderState maps the order's age to a lifecycle stage.
func (m *MockProvider) orderState(o *simOrder) string {
	age := time.Since(o.SubmittedAt)
	switch {
	case age < m.stageDelay:
		return "CREATED"
	case age < 2*m.stageDelay:
		return "PENDING"
	case age < 3*m.stageDelay:
		return "SUBMITTED"
	default:
		if o.Failed {
			return "FAILED"
		}
		return "SUCCESSFUL"
	}
}

type orderResponse struct {
	Ref            string           `json:"ref"`
	State          string           `json:"state"`
	AllottedUnits  *decimal.Decimal `json:"allotted_units,omitempty"`
	PurchasedPrice *decimal.Decimal `json:"purchased_price,omitempty"`
	RedeemedUnits  *decimal.Decimal `json:"redeemed_units,omitempty"`
	RedeemedPrice  *decimal.Decimal `json:"redeemed_price,omitempty"`
	FolioRef       string           `json:"folio_ref,omitempty"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`
}

func (m *MockProvider) orderResponse(o *simOrder) orderResponse {
	resp := orderResponse{Ref: o.Ref, State: m.orderState(o)}
	if resp.State != "SUCCESSFUL" {
		return resp
	}

	// Deterministic price per ref so repeated polls agree.
	seed := int64(0)
	for _, c := range o.Ref {
		seed = seed*31 + int64(c)
	}
	price := decimal.NewFromInt(10 + seed%90)
	units := o.Amount.DivRound(price, 4)

	if o.Kind == "SELL" {
		resp.RedeemedUnits = &units
		resp.RedeemedPrice = &price
	} else {
		resp.AllottedUnits = &units
		resp.PurchasedPrice = &price
	}
	resp.FolioRef = "FOLIO-" + o.Ref
	resp.SubmittedAt = &o.SubmittedAt
	return resp
}

type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

type submitOrderRequest struct {
	Ref       string          `json:"ref" binding:"required"`
	UserID    int64           `json:"user_id"`
	Kind      string          `json:"kind"`
	FundID    int64           `json:"fund_id"`
	Amount    decimal.Decimal `json:"amount"`
	MandateID *string         `json:"mandate_id"`
}

// SubmitOrder registers a new order; resubmitting a known ref returns the
// existing order untouched.
func (h *Handler) SubmitOrder(c *gin.Context) {
	var req submitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	h.provider.mu.Lock()
	order, ok := h.provider.orders[req.Ref]
	if !ok {
		order = &simOrder{
			Ref:         req.Ref,
			Kind:        req.Kind,
			Amount:      req.Amount,
			SubmittedAt: time.Now(),
			Failed:      !h.provider.shouldSucceed(),
		}
		h.provider.orders[req.Ref] = order
	}
	resp := h.provider.orderResponse(order)
	h.provider.mu.Unlock()

	log.Info().
		Str("ref", req.Ref).
		Str("kind", req.Kind).
		Bool("known", ok).
		Msg("order submission received")

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GetOrder(c *gin.Context) {
	ref := c.Param("ref")

	h.provider.mu.Lock()
	order, ok := h.provider.orders[ref]
	var resp orderResponse
	if ok {
		resp = h.provider.orderResponse(order)
	}
	h.provider.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetPayment(c *gin.Context) {
	ref := c.Param("ref")

	h.provider.mu.Lock()
	p, ok := h.provider.payments[ref]
	if !ok {
		p = &simPayment{Ref: ref, FirstSeen: time.Now(), Failed: !h.provider.shouldSucceed()}
		h.provider.payments[ref] = p
	}
	status := "PENDING"
	if time.Since(p.FirstSeen) >= h.provider.stageDelay {
		if p.Failed {
			status = "FAILURE"
		} else {
			status = "SUCCESS"
		}
	}
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"ref": ref, "status": status})
}

func (h *Handler) GetMandate(c *gin.Context) {
	id := c.Param("id")

	h.provider.mu.Lock()
	md, ok := h.provider.mandates[id]
	if !ok {
		md = &simMandate{ID: id, FirstSeen: time.Now(), Rejected: !h.provider.shouldSucceed()}
		h.provider.mandates[id] = md
	}
	status := "SUBMITTED"
	if time.Since(md.FirstSeen) >= h.provider.stageDelay {
		if md.Rejected {
			status = "REJECTED"
		} else {
			status = "APPROVED"
		}
	}
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

// GetKyc reports users with an even id as verified and the rest pending,
// so gated flows can be exercised deterministically.
func (h *Handler) GetKyc(c *gin.Context) {
	var userID int64
	if _, err := fmt.Sscanf(c.Param("user_id"), "%d", &userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be numeric"})
		return
	}

	status := "PENDING"
	if userID%2 == 0 {
		status = "VERIFIED"
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "status": status})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"provider_id":  h.provider.providerID,
		"timestamp":    time.Now(),
		"success_rate": h.provider.successRate,
	})
}

// UpdateConfig allows changing simulation behavior at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var cfg struct {
		SuccessRate *float64 `json:"success_rate"`
		StageDelay  *string  `json:"stage_delay"`
	}

	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	h.provider.mu.Lock()
	if cfg.SuccessRate != nil && *cfg.SuccessRate >= 0 && *cfg.SuccessRate <= 1.0 {
		h.provider.successRate = *cfg.SuccessRate
		log.Info().Float64("rate", *cfg.SuccessRate).Msg("updated success rate")
	}
	if cfg.StageDelay != nil {
		if d, err := time.ParseDuration(*cfg.StageDelay); err == nil {
			h.provider.stageDelay = d
			log.Info().Dur("delay", d).Msg("updated stage delay")
		}
	}
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": "configuration updated"})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", handler.SubmitOrder)
		v1.GET("/orders/:ref", handler.GetOrder)
		v1.GET("/payments/:ref", handler.GetPayment)
		v1.GET("/mandates/:id", handler.GetMandate)
		v1.GET("/kyc/:user_id", handler.GetKyc)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	successRate := getEnvFloat("SUCCESS_RATE", 1)
	stageDelay := getEnvDuration("STAGE_DELAY", 5*time.Second)

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Dur("stage_delay", stageDelay).
		Msg("starting mock fund provider")

	provider := NewMockProvider(successRate, stageDelay)
	handler := NewHandler(provider)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

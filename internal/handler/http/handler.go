package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla_ws "github.com/gorilla/websocket"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/handler/middleware"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/market"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/service"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/websocket"
	"github.com/nitin-nirvajna/crypto-mockfolio/lib/errs"
	"github.com/shopspring/decimal"
)

type Handler struct {
	sessions  service.SessionsService
	portfolio service.PortfolioService
	billing   service.BillingService
	market    *market.Store
	wsManager *websocket.Manager
	log       *slog.Logger
	jwtSecret string
	upgrader  gorilla_ws.Upgrader
}

func NewHandler(sessions service.SessionsService, portfolio service.PortfolioService, billing service.BillingService,
	marketStore *market.Store, wsManager *websocket.Manager, log *slog.Logger, jwtSecret string) *Handler {
	return &Handler{
		sessions:  sessions,
		portfolio: portfolio,
		billing:   billing,
		market:    marketStore,
		wsManager: wsManager,
		log:       log,
		jwtSecret: jwtSecret,
		upgrader: gorilla_ws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", h.login)
			auth.POST("/signup", h.signup)
			auth.POST("/reset-password", h.resetPassword)
			auth.POST("/logout", middleware.AuthMiddleware(h.jwtSecret, h.log), h.logout)
		}

		mkt := api.Group("/market")
		{
			mkt.GET("", h.getMarket)
			mkt.POST("/refresh", h.refreshMarket)
		}

		portfolio := api.Group("/portfolio", middleware.AuthMiddleware(h.jwtSecret, h.log))
		{
			portfolio.GET("", h.getPortfolio)
			portfolio.POST("/buy", h.buy)
			portfolio.POST("/sell", h.sell)
			portfolio.GET("/trades", h.getTrades)
		}

		authed := api.Group("", middleware.AuthMiddleware(h.jwtSecret, h.log))
		{
			authed.GET("/profile", h.getProfile)
			authed.POST("/subscription", h.subscribe)
			authed.GET("/ws", h.wsConnect)
		}
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, token, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		h.log.Error("failed to log in", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accessToken": token, "user": user})
}

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, token, err := h.sessions.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrEmailInUse) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already in use"})
			return
		}
		h.log.Error("failed to sign up", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"accessToken": token, "user": user})
}

type resetPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.sessions.ResetPassword(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, errs.ErrEmailNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
			return
		}
		h.log.Error("failed to reset password", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password reset link sent to your email"})
}

func (h *Handler) logout(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), userID); err != nil {
		h.log.Error("failed to log out", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

func (h *Handler) getProfile(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	user, err := h.sessions.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
			return
		}
		h.log.Error("failed to get profile", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) getMarket(c *gin.Context) {
	snap := h.market.Latest()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market data unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quotes": snap.Quotes, "fetchedAt": snap.FetchedAt})
}

func (h *Handler) refreshMarket(c *gin.Context) {
	if err := h.market.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market data unavailable"})
		return
	}

	snap := h.market.Latest()
	c.JSON(http.StatusOK, gin.H{"quotes": snap.Quotes, "fetchedAt": snap.FetchedAt})
}

func (h *Handler) getPortfolio(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	snap := h.market.Latest()

	view, err := h.portfolio.View(c.Request.Context(), userID, snap)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
			return
		}
		h.log.Error("failed to build portfolio view", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	stats, err := h.portfolio.Stats(c.Request.Context(), userID, snap)
	if err != nil {
		h.log.Error("failed to compute portfolio stats", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	resp := gin.H{"portfolio": view}
	if stats != nil {
		resp["stats"] = stats
	}
	c.JSON(http.StatusOK, resp)
}

type tradeRequest struct {
	CoinID   string `json:"coin_id" binding:"required"`
	Quantity string `json:"quantity" binding:"required"`
}

func (h *Handler) buy(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity format"})
		return
	}

	snap := h.market.Latest()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market data unavailable"})
		return
	}

	quote := snap.Lookup(req.CoinID)
	if quote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "coin not found in market"})
		return
	}

	holding, err := h.portfolio.Buy(c.Request.Context(), userID, *quote, quantity)
	if err != nil {
		h.respondTradeError(c, err, "buy")
		return
	}

	c.JSON(http.StatusOK, holding)
}

func (h *Handler) sell(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity format"})
		return
	}

	if err := h.portfolio.Sell(c.Request.Context(), userID, req.CoinID, quantity, h.market.Latest()); err != nil {
		h.respondTradeError(c, err, "sell")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "coin sold successfully"})
}

func (h *Handler) getTrades(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	trades, err := h.portfolio.Trades(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("failed to list trades", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

type subscribeRequest struct {
	Plan string `json:"plan" binding:"required,oneof=monthly yearly"`
}

func (h *Handler) subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body, 'plan' must be monthly or yearly"})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	endDate, err := h.billing.Subscribe(c.Request.Context(), userID, service.PlanInterval(req.Plan))
	if err != nil {
		if errors.Is(err, errs.ErrPaymentDeclined) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment declined"})
			return
		}
		h.log.Error("failed to subscribe", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "subscription updated successfully", "subscriptionEndDate": endDate})
}

func (h *Handler) wsConnect(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	user, err := h.sessions.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
			return
		}
		h.log.Error("ws: cannot get user", slog.Any("error", err), "userID", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not authorize websocket"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("failed to upgrade connection", slog.Any("error", err))
		return
	}

	client := &websocket.Client{
		Manager: h.wsManager,
		Conn:    conn,
		UserID:  userID,
		User:    user,
		Send:    make(chan []byte, 256),
	}

	client.Manager.Register(client)

	go client.Writer()
	go client.Reader()
}

// respondTradeError maps ledger rejections onto status codes; anything
// unexpected is logged and reported as a 500.
func (h *Handler) respondTradeError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, errs.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be a positive number"})
	case errors.Is(err, errs.ErrInsufficientHolding):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient holding"})
	case errors.Is(err, errs.ErrSubscriptionRequired):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "free transaction limit reached, please subscribe"})
	case errors.Is(err, errs.ErrMarketDataUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market data unavailable"})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
	default:
		h.log.Error("trade failed", "op", op, slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handler) currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDRaw, ok := c.Get(middleware.UserIDKey)
	if !ok {
		h.log.Error("handler: userID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDRaw.(string))
	if err != nil {
		h.log.Error("handler: failed to parse userID from context", "userID", userIDRaw)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id in token"})
		return uuid.Nil, false
	}

	return userID, true
}

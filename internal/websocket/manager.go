// Package websocket pushes a fresh portfolio valuation to connected
// clients whenever a price update for one of their held coins arrives on
// the redis price channels.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/market"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/models"
	"github.com/nitin-nirvajna/crypto-mockfolio/internal/repository"
	"github.com/nitin-nirvajna/crypto-mockfolio/storage/redis"
	"github.com/shopspring/decimal"
)

type Client struct {
	Manager *Manager
	Conn    *websocket.Conn
	UserID  uuid.UUID
	User    *models.User
	Send    chan []byte
	Prices  map[string]decimal.Decimal
	mu      sync.RWMutex
}

type Manager struct {
	clients         map[uuid.UUID]*Client
	mu              sync.RWMutex
	register        chan *Client
	unregister      chan *Client
	log             *slog.Logger
	subscriber      *redis.Subscriber
	holdingsRepo    repository.HoldingsRepository
	marketStore     *market.Store
	activeRedisSub  map[string]struct{}
	coinSubscribers map[string]map[uuid.UUID]bool
}

func NewManager(log *slog.Logger, subscriber *redis.Subscriber, holdingsRepo repository.HoldingsRepository, marketStore *market.Store) *Manager {
	return &Manager{
		clients:         make(map[uuid.UUID]*Client),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		log:             log,
		subscriber:      subscriber,
		holdingsRepo:    holdingsRepo,
		marketStore:     marketStore,
		activeRedisSub:  make(map[string]struct{}),
		coinSubscribers: make(map[string]map[uuid.UUID]bool),
	}
}

func (m *Manager) Run(ctx context.Context) {
	go m.listenToRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Manager run loop stopping...")
			return
		case client := <-m.register:
			m.registerClient(client)
		case client := <-m.unregister:
			m.unregisterClient(client)
		}
	}
}

func (m *Manager) listenToRedis(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.log.Info("Redis listener stopping...")
			return
		case msg, ok := <-m.subscriber.Messages:
			if !ok {
				m.log.Warn("manager redis subscriber channel closed")
				return
			}
			m.processRedisMessage(msg)
		}
	}
}

func (m *Manager) Register(client *Client) {
	m.register <- client
}

func (m *Manager) Unregister(client *Client) {
	m.unregister <- client
}

func (m *Manager) registerClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldClient, exists := m.clients[client.UserID]; exists {
		m.log.Warn("client re-registering, closing old connection", "userID", client.UserID)
		close(oldClient.Send)
		oldClient.Conn.Close()
	}

	// Seed from the latest snapshot so the first push does not have to
	// wait for a live price update on every symbol.
	client.Prices = make(map[string]decimal.Decimal)
	if snap := m.marketStore.Latest(); snap != nil {
		for _, q := range snap.Quotes {
			client.Prices[q.Symbol] = q.CurrentPrice
		}
	}

	m.clients[client.UserID] = client
	m.log.Info("new client registered", "userID", client.UserID)

	for _, holding := range client.User.Holdings {
		m.followCoin(client.UserID, holding.Symbol)
	}
}

func (m *Manager) unregisterClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[client.UserID]; ok {
		delete(m.clients, client.UserID)
		m.unfollowAllCoins(client.UserID)
		m.log.Info("client unregistered", "userID", client.UserID)
	}
}

func (m *Manager) followCoin(userID uuid.UUID, symbol string) {
	if _, ok := m.coinSubscribers[symbol]; !ok {
		m.coinSubscribers[symbol] = make(map[uuid.UUID]bool)
	}
	m.coinSubscribers[symbol][userID] = true

	if _, ok := m.activeRedisSub[symbol]; !ok {
		if err := m.subscriber.Subscribe(context.Background(), symbol); err != nil {
			m.log.Error("manager: could not subscribe to coin stream", "coin", symbol, "error", err)
			return
		}
		m.activeRedisSub[symbol] = struct{}{}
	}
}

func (m *Manager) unfollowAllCoins(userID uuid.UUID) {
	for symbol, users := range m.coinSubscribers {
		if _, ok := users[userID]; ok {
			delete(users, userID)
		}

		if len(users) == 0 {
			delete(m.coinSubscribers, symbol)
			delete(m.activeRedisSub, symbol)
			if err := m.subscriber.Unsubscribe(context.Background(), symbol); err != nil {
				m.log.Error("manager: failed to unsubscribe from redis", "symbol", symbol, "error", err)
			}
		}
	}
}

func (m *Manager) processRedisMessage(msg redis.Message) {
	var priceUpdate models.PriceUpdate
	if err := json.Unmarshal([]byte(msg.Payload), &priceUpdate); err != nil {
		m.log.Error("failed to parse price update from redis", "error", err, "payload", msg.Payload)
		return
	}

	priceDecimal := decimal.NewFromFloat(priceUpdate.Price)

	m.mu.RLock()
	defer m.mu.RUnlock()

	subscribers, ok := m.coinSubscribers[priceUpdate.Symbol]
	if !ok {
		return
	}

	for userID := range subscribers {
		client, ok := m.clients[userID]
		if !ok {
			continue
		}

		holdings, err := m.holdingsRepo.ListHoldings(userID)
		if err != nil {
			m.log.Error("failed to load holdings for valuation push", "error", err, "userID", userID)
			continue
		}

		client.mu.Lock()
		client.Prices[priceUpdate.Symbol] = priceDecimal

		view := models.PortfolioView{
			UserID:     client.UserID.String(),
			UserName:   client.User.Name,
			TotalValue: decimal.Zero,
			Holdings:   []models.HoldingView{},
		}

		for _, h := range holdings {
			currentPrice, priceFound := client.Prices[h.Symbol]
			if !priceFound {
				currentPrice = h.AverageCost
			}

			value := h.Quantity.Mul(currentPrice)
			view.Holdings = append(view.Holdings, models.HoldingView{
				CoinID:       h.CoinID,
				Symbol:       h.Symbol,
				Name:         h.Name,
				Image:        h.Image,
				Quantity:     h.Quantity,
				AverageCost:  h.AverageCost,
				CurrentPrice: currentPrice,
				CurrentValue: value,
			})
			view.TotalValue = view.TotalValue.Add(value)
		}

		jsonData, err := json.Marshal(view)
		if err != nil {
			m.log.Error("failed to marshal portfolio view", "error", err, "userID", userID)
			client.mu.Unlock()
			continue
		}

		select {
		case client.Send <- jsonData:
		default:
			m.log.Warn("client send channel is full, dropping message", "userID", userID)
		}
		client.mu.Unlock()
	}
}

func (c *Client) Writer() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Manager.log.Warn("failed to write message to client", "userID", c.UserID)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) Reader() {
	defer func() {
		c.Manager.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Manager.log.Warn("unexpected close error", "userID", c.UserID, "error", err)
			}
			break
		}
	}
}

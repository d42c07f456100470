package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nitin-nirvajna/crypto-mockfolio/internal/config"
	"github.com/nitin-nirvajna/crypto-mockfolio/lib/errs"
	"github.com/shopspring/decimal"
)

// Client fetches the coins/markets listing from a CoinGecko style API.
type Client struct {
	baseURL    string
	vsCurrency string
	perPage    int
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg config.MarketConfig, log *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		vsCurrency: cfg.VsCurrency,
		perPage:    cfg.PerPage,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

// marketEntry mirrors the upstream payload. Pointer fields absorb missing
// or null values so a sloppy response never breaks the decode.
type marketEntry struct {
	ID             string   `json:"id"`
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	Image          string   `json:"image"`
	CurrentPrice   *float64 `json:"current_price"`
	PriceChange24h *float64 `json:"price_change_percentage_24h"`
}

// Fetch performs a single request for the current market listing. No
// retries: a failure is reported as ErrMarketDataUnavailable and the
// caller decides when to try again.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	const op = "market.Fetch"

	endpoint := fmt.Sprintf("%s/coins/markets?vs_currency=%s&order=market_cap_desc&per_page=%s&page=1&sparkline=false",
		c.baseURL, url.QueryEscape(c.vsCurrency), strconv.Itoa(c.perPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, errs.ErrMarketDataUnavailable, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, errs.ErrMarketDataUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w: unexpected status %s", op, errs.ErrMarketDataUnavailable, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, errs.ErrMarketDataUnavailable, err.Error())
	}

	var entries []marketEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, errs.ErrMarketDataUnavailable, err.Error())
	}

	quotes := make([]Quote, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			c.log.Warn("skipping market entry without id", "symbol", e.Symbol)
			continue
		}
		q := Quote{
			ID:     e.ID,
			Symbol: e.Symbol,
			Name:   e.Name,
			Image:  e.Image,
		}
		if e.CurrentPrice != nil {
			q.CurrentPrice = decimal.NewFromFloat(*e.CurrentPrice)
		}
		if e.PriceChange24h != nil {
			q.PriceChange24h = decimal.NewFromFloat(*e.PriceChange24h)
		}
		quotes = append(quotes, q)
	}

	return NewSnapshot(quotes, time.Now().Unix()), nil
}

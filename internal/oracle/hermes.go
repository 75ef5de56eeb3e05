// internal/oracle/hermes.go
package oracle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultHermesURL - публичный Hermes API Pyth.
const DefaultHermesURL = "https://hermes.pyth.network"

// DefaultTwapWindow - окно TWAP по умолчанию.
const DefaultTwapWindow = 150 * time.Second

// HermesClient получает подписанные обновления цен (spot и TWAP) из Hermes.
type HermesClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewHermesClient создает клиента; пустой baseURL означает DefaultHermesURL.
func NewHermesClient(baseURL string, logger *zap.Logger) *HermesClient {
	if baseURL == "" {
		baseURL = DefaultHermesURL
	}
	return &HermesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.Named("hermes"),
	}
}

type hermesBinary struct {
	Encoding string   `json:"encoding"`
	Data     []string `json:"data"`
}

type hermesPrice struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

type hermesParsedPrice struct {
	ID       string      `json:"id"`
	Price    hermesPrice `json:"price"`
	EmaPrice hermesPrice `json:"ema_price"`
}

type hermesParsedTwap struct {
	ID             string      `json:"id"`
	StartTimestamp int64       `json:"start_timestamp"`
	EndTimestamp   int64       `json:"end_timestamp"`
	Twap           hermesPrice `json:"twap"`
}

type hermesPriceResponse struct {
	Binary hermesBinary        `json:"binary"`
	Parsed []hermesParsedPrice `json:"parsed"`
}

type hermesTwapResponse struct {
	Binary hermesBinary       `json:"binary"`
	Parsed []hermesParsedTwap `json:"parsed"`
}

// Quote - разобранная цена из Hermes.
type Quote struct {
	FeedID      FeedID
	Price       decimal.Decimal
	Conf        decimal.Decimal
	PublishTime time.Time
}

// PriceUpdate - сырые подписанные данные (VAA) и разобранные цены.
type PriceUpdate struct {
	Blobs  [][]byte
	Quotes []Quote
}

// LatestPriceUpdate запрашивает последние spot-обновления для feed ids.
func (c *HermesClient) LatestPriceUpdate(ctx context.Context, feedIDs ...FeedID) (*PriceUpdate, error) {
	var resp hermesPriceResponse
	if err := c.get(ctx, "/v2/updates/price/latest", feedIDs, &resp); err != nil {
		return nil, err
	}
	blobs, err := decodeBlobs(resp.Binary)
	if err != nil {
		return nil, err
	}
	quotes := make([]Quote, 0, len(resp.Parsed))
	for _, p := range resp.Parsed {
		q, err := toQuote(p.ID, p.Price)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return &PriceUpdate{Blobs: blobs, Quotes: quotes}, nil
}

// LatestTwapUpdate запрашивает TWAP за окно window.
func (c *HermesClient) LatestTwapUpdate(ctx context.Context, window time.Duration, feedIDs ...FeedID) (*PriceUpdate, error) {
	if window <= 0 {
		window = DefaultTwapWindow
	}
	var resp hermesTwapResponse
	path := fmt.Sprintf("/v2/updates/twap/%d/latest", int64(window/time.Second))
	if err := c.get(ctx, path, feedIDs, &resp); err != nil {
		return nil, err
	}
	blobs, err := decodeBlobs(resp.Binary)
	if err != nil {
		return nil, err
	}
	quotes := make([]Quote, 0, len(resp.Parsed))
	for _, p := range resp.Parsed {
		q, err := toQuote(p.ID, p.Twap)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return &PriceUpdate{Blobs: blobs, Quotes: quotes}, nil
}

func (c *HermesClient) get(ctx context.Context, path string, feedIDs []FeedID, out interface{}) error {
	if len(feedIDs) == 0 {
		return fmt.Errorf("hermes: no feed ids")
	}
	q := url.Values{}
	for _, id := range feedIDs {
		q.Add("ids[]", "0x"+id.String())
	}
	q.Set("encoding", "base64")
	q.Set("parsed", "true")
	endpoint := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build hermes request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hermes request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("hermes request %s: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode hermes response: %w", err)
	}

	c.logger.Debug("Hermes update fetched",
		zap.String("path", path),
		zap.Int("feeds", len(feedIDs)),
		zap.Duration("took", time.Since(start)))
	return nil
}

func decodeBlobs(b hermesBinary) ([][]byte, error) {
	if b.Encoding != "" && b.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected hermes encoding %q", b.Encoding)
	}
	blobs := make([][]byte, 0, len(b.Data))
	for _, s := range b.Data {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("decode hermes blob: %w", err)
		}
		blobs = append(blobs, raw)
	}
	return blobs, nil
}

func toQuote(id string, p hermesPrice) (Quote, error) {
	feedID, err := ParseFeedID(id)
	if err != nil {
		return Quote{}, err
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("parse price for %s: %w", id, err)
	}
	conf, err := decimal.NewFromString(p.Conf)
	if err != nil {
		return Quote{}, fmt.Errorf("parse conf for %s: %w", id, err)
	}
	return Quote{
		FeedID:      feedID,
		Price:       price.Shift(p.Expo),
		Conf:        conf.Shift(p.Expo),
		PublishTime: time.Unix(p.PublishTime, 0),
	}, nil
}

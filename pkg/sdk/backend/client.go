// Package backend is the REST client for the trading backend: market
// catalogue, chart history, position preview, the remote sponsor endpoint
// and the best-effort position ledger.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Client talks to the trading backend. All methods make a single attempt;
// retry policy belongs to callers (and for the submission path there is
// none by design).
type Client struct {
	http *resty.Client
}

// NewClient creates a backend client rooted at baseURL
// (e.g. https://backend-product.futstar.fun/api/v1).
func NewClient(baseURL string) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	return &Client{http: http}
}

func httpErr(resp *resty.Response, err error, what string) error {
	if err != nil {
		return errors.Wrapf(err, "%s", what)
	}
	return errors.Errorf("%s: http %d: %s", what, resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
}

// ListMarkets fetches one page of the market catalogue.
func (c *Client) ListMarkets(ctx context.Context, page, pageSize int) (*MarketPage, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	var out MarketPage
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("page", fmt.Sprint(page)).
		SetQueryParam("page_size", fmt.Sprint(pageSize)).
		SetResult(&out).
		Get("/markets/")
	if err != nil || resp.IsError() {
		return nil, httpErr(resp, err, "list markets")
	}
	return &out, nil
}

// GetMarket resolves a single market by id, paging through the catalogue.
func (c *Client) GetMarket(ctx context.Context, marketID string) (*Market, error) {
	page := 1
	for {
		mp, err := c.ListMarkets(ctx, page, 50)
		if err != nil {
			return nil, err
		}
		for i := range mp.Items {
			if mp.Items[i].MarketID == marketID {
				return &mp.Items[i], nil
			}
		}
		if page >= mp.TotalPages || len(mp.Items) == 0 {
			return nil, errors.Errorf("market %s not found", marketID)
		}
		page++
	}
}

// ChartHistory fetches OHLC history for one market and timeframe
// (1m, 5m, 15m, 1h, 4h, 1d, 1w).
func (c *Client) ChartHistory(ctx context.Context, marketID, timeframe string, limit int) ([]Candle, error) {
	if limit <= 0 {
		limit = 200
	}
	var out chartResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("timeframe", timeframe).
		SetQueryParam("limit", fmt.Sprint(limit)).
		SetResult(&out).
		Get("/charts/price/" + marketID)
	if err != nil || resp.IsError() {
		return nil, httpErr(resp, err, "chart history")
	}
	if !out.Success {
		msg := "unknown error"
		if out.Message != nil {
			msg = *out.Message
		}
		return nil, errors.Errorf("chart history: %s", msg)
	}
	return out.Data, nil
}

// PreviewPosition asks the backend to project entry price, liquidation
// price and collateral for the given inputs. Callers debounce; the result
// is ephemeral.
func (c *Client) PreviewPosition(ctx context.Context, req PreviewRequest) (*PreviewData, error) {
	var out previewResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/positions/preview")
	if err != nil || resp.IsError() {
		return nil, httpErr(resp, err, "position preview")
	}
	if !out.Success {
		return nil, errors.Errorf("position preview: %s", out.Message)
	}
	return &out.Data, nil
}

// SponsorGas sends the built transaction bytes and the user signature to
// the remote sponsor, which co-signs and submits atomically. On a
// {success:false} response the backend's error message is surfaced
// verbatim.
func (c *Client) SponsorGas(ctx context.Context, req SponsorRequest) (*SponsorResponse, error) {
	var out SponsorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/positions/sponsor_gas")
	if err != nil {
		return nil, errors.Wrap(err, "sponsor gas")
	}
	if !out.Success {
		if out.Error != "" {
			return nil, errors.New(out.Error)
		}
		return nil, httpErr(resp, nil, "sponsor gas")
	}
	return &out, nil
}

// RecordOpenPosition posts the opened-position ledger record. The
// idempotency key is derived from the transaction digest so a retried post
// cannot create a duplicate record.
func (c *Client) RecordOpenPosition(ctx context.Context, rec PositionRecord) error {
	return c.postRecord(ctx, "/positions/open", rec)
}

// RecordClosePosition posts the closed-position ledger record.
func (c *Client) RecordClosePosition(ctx context.Context, rec PositionRecord) error {
	return c.postRecord(ctx, "/positions/close", rec)
}

func (c *Client) postRecord(ctx context.Context, path string, rec PositionRecord) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Idempotency-Key", rec.TxHash).
		SetBody(rec).
		Post(path)
	if err != nil || resp.IsError() {
		return httpErr(resp, err, "position record")
	}
	return nil
}

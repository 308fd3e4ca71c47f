package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/stockhunter/stockhunter/internal/store"
	"github.com/stockhunter/stockhunter/pkg/httputil"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

// ErrAuth is returned when the upstream session login fails. The whole
// chunk that needed the session is treated as failed.
var ErrAuth = errors.New("upstream login failed")

// RequestError is a non-zero upstream status for a single query. It
// fails that task only; sibling tasks are unaffected.
type RequestError struct {
	Code string
	Msg  string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("upstream error %s: %s", e.Code, e.Msg)
}

// queryFields is the fixed field list requested for daily bars. It
// matches the series file column order exactly.
const queryFields = "date,code,open,high,low,close,volume,amount,adjustflag,turn,pctChg"

// universeLookback caps how many calendar days QueryUniverse walks
// backwards looking for a trading day with a full listing.
const universeLookback = 30

// universeMinRows is the row count a listing must exceed to count as
// a full market snapshot; holiday responses come back much smaller.
const universeMinRows = 4000

// Client talks to the daily-bar query API. Transport (direct or
// proxied) is fixed at construction; callers that alternate egress
// hold one client per transport.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient creates an upstream client over the given HTTP transport.
func NewClient(baseURL string, httpClient *httputil.Client, reqPerSec float64, log *logger.Logger) *Client {
	if reqPerSec <= 0 {
		reqPerSec = 10
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "upstream"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(reqPerSec), 1),
	}
}

// Session is an authenticated upstream session. Sessions are scoped to
// one worker chunk: acquired at chunk start, released via Logout at
// chunk end even when the chunk fails mid-way.
type Session struct {
	client *Client
	token  string
}

// Login opens a session. A non-zero status or transport failure maps
// to ErrAuth.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	body, err := c.call(ctx, "/login", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	if code := gjson.GetBytes(body, "error_code").String(); code != "0" {
		return nil, fmt.Errorf("%w: status %s", ErrAuth, code)
	}

	return &Session{
		client: c,
		token:  gjson.GetBytes(body, "access_token").String(),
	}, nil
}

// Logout releases the session. Errors are logged, not propagated: a
// failed logout must not fail the chunk that already did its work.
func (s *Session) Logout(ctx context.Context) {
	params := url.Values{}
	params.Set("access_token", s.token)

	if _, err := s.client.call(ctx, "/logout", params); err != nil {
		s.client.logger.WithError(err).Warn("Upstream logout failed")
	}
}

// QueryDailyBars fetches back-adjusted daily bars for one symbol over
// [start, end]. An empty item list is success with nothing new; a
// non-zero status is a RequestError.
func (s *Session) QueryDailyBars(ctx context.Context, code, start, end string) ([]store.Record, error) {
	params := url.Values{}
	params.Set("access_token", s.token)
	params.Set("code", code)
	params.Set("fields", queryFields)
	params.Set("start_date", start)
	params.Set("end_date", end)
	params.Set("frequency", "d")
	params.Set("adjustflag", "2")

	body, err := s.client.call(ctx, "/query/history_k_data", params)
	if err != nil {
		return nil, err
	}

	if status := gjson.GetBytes(body, "error_code").String(); status != "0" {
		return nil, &RequestError{Code: status, Msg: gjson.GetBytes(body, "error_msg").String()}
	}

	var records []store.Record
	gjson.GetBytes(body, "data.items").ForEach(func(_, item gjson.Result) bool {
		row := item.Array()
		if len(row) < 11 {
			return true
		}
		records = append(records, store.Record{
			Date:       row[0].String(),
			Code:       row[1].String(),
			Open:       row[2].Float(),
			High:       row[3].Float(),
			Low:        row[4].Float(),
			Close:      row[5].Float(),
			Volume:     row[6].Float(),
			Amount:     row[7].String(),
			AdjustFlag: row[8].String(),
			Turn:       row[9].String(),
			PctChg:     row[10].Float(),
		})
		return true
	})

	s.client.logger.WithFields(map[string]interface{}{
		"code":  code,
		"start": start,
		"end":   end,
		"count": len(records),
	}).Debug("Fetched daily bars")

	return records, nil
}

// queryAllStock fetches the listing for one trading day. Items are
// [code, tradeStatus, name] rows.
func (s *Session) queryAllStock(ctx context.Context, day string) ([]store.Symbol, error) {
	params := url.Values{}
	params.Set("access_token", s.token)
	params.Set("day", day)

	body, err := s.client.call(ctx, "/query/all_stock", params)
	if err != nil {
		return nil, err
	}

	if status := gjson.GetBytes(body, "error_code").String(); status != "0" {
		return nil, &RequestError{Code: status, Msg: gjson.GetBytes(body, "error_msg").String()}
	}

	var symbols []store.Symbol
	gjson.GetBytes(body, "data.items").ForEach(func(_, item gjson.Result) bool {
		row := item.Array()
		if len(row) < 3 {
			return true
		}
		symbols = append(symbols, store.Symbol{Code: row[0].String(), Name: row[2].String()})
		return true
	})
	return symbols, nil
}

// QueryUniverse returns the tradable full-market universe: the most
// recent daily listing (walking backwards over holidays) filtered to
// the tracked exchange code prefixes.
func (c *Client) QueryUniverse(ctx context.Context, now time.Time) ([]store.Symbol, error) {
	session, err := c.Login(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Logout(ctx)

	for i := 0; i < universeLookback; i++ {
		day := now.AddDate(0, 0, -i).Format("2006-01-02")

		listed, err := session.queryAllStock(ctx, day)
		if err != nil {
			c.logger.WithError(err).WithField("day", day).Debug("Universe listing unavailable")
			continue
		}
		if len(listed) <= universeMinRows {
			continue // holiday or partial listing
		}

		universe := make([]store.Symbol, 0, len(listed))
		for _, sym := range listed {
			if IsTrackedCode(sym.Code) {
				universe = append(universe, sym)
			}
		}

		c.logger.WithFields(map[string]interface{}{
			"day":   day,
			"total": len(listed),
			"kept":  len(universe),
		}).Info("Fetched market universe")

		return universe, nil
	}

	return nil, fmt.Errorf("no full market listing within %d days", universeLookback)
}

// IsTrackedCode reports whether the exchange-prefixed code belongs to
// the boards this system tracks.
func IsTrackedCode(code string) bool {
	for _, prefix := range []string{"sh.6", "sz.0", "sz.3", "bj."} {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

// call performs one rate-limited GET against the API.
func (c *Client) call(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}
	return body, nil
}

package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stockhunter/stockhunter/internal/analyze"
	"github.com/stockhunter/stockhunter/pkg/config"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

const systemPrompt = `You are a senior equity technical analyst with twenty years of desk experience. You receive a JSON array of stocks with derived technical data: moving-average formation, year-line state, MACD/KDJ/RSI readings, volume state and ratio, distance to resistance and support, the recent close trajectory and the strategy match reason.

Respond with a strict JSON array, no markdown fencing. Each element has:
- "code": the stock code, copied from the input
- "suggestion": one of "strong buy", "buy", "hold", "caution", "avoid"
- "reason": at most 300 characters covering pattern, indicator confluence and a concrete entry/stop hint based on the resistance and support distances`

// maxCallAttempts bounds the per-batch retry loop.
const maxCallAttempts = 3

// stockBrief is the trimmed per-symbol payload sent to the model.
type stockBrief struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	BuyPrice       float64 `json:"buy_price"`
	Trend          string  `json:"trend"`
	YearLine       string  `json:"year_line"`
	MACD           string  `json:"macd"`
	KDJ            string  `json:"kdj"`
	RSI            float64 `json:"rsi"`
	VolumeState    string  `json:"volume_state"`
	VolumeRatio    float64 `json:"volume_ratio"`
	ResistanceDist float64 `json:"resistance_dist_pct"`
	SupportDist    float64 `json:"support_dist_pct"`
	Trajectory     string  `json:"recent_trajectory"`
	MatchReason    string  `json:"match_reason"`
}

// Advice is one parsed model verdict.
type Advice struct {
	Suggestion string
	Rationale  string
}

// httpDoer lets tests stand in for the real transport.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Advisor turns analysis rows into natural-language advice via an
// OpenAI-compatible chat-completions endpoint. It is stateless; every
// run is a fresh set of batched calls.
type Advisor struct {
	client httpDoer
	cfg    config.LLMConfig
	logger *logger.Logger
}

// New creates an advisor. A nil doer gets a default client with the
// configured timeout.
func New(cfg config.LLMConfig, doer httpDoer, log *logger.Logger) *Advisor {
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	return &Advisor{
		client: doer,
		cfg:    cfg,
		logger: log.WithField("module", "advisor"),
	}
}

// Enabled reports whether an API key is configured.
func (a *Advisor) Enabled() bool {
	return a.cfg.APIKey != ""
}

// Annotate fills Advice/Rationale on the rows in place, keyed by
// symbol code. Batch failures leave their rows un-advised and never
// abort the run.
func (a *Advisor) Annotate(ctx context.Context, rows []analyze.Row) {
	if !a.Enabled() || len(rows) == 0 {
		return
	}

	batchSize := a.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 10
	}
	threads := a.cfg.MaxThreads
	if threads < 1 {
		threads = 1
	}

	var batches [][]stockBrief
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := make([]stockBrief, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, brief(&rows[i]))
		}
		batches = append(batches, batch)
	}

	a.logger.WithFields(map[string]interface{}{
		"rows":    len(rows),
		"batches": len(batches),
		"threads": threads,
	}).Info("Requesting advice")

	advised := make(map[string]Advice)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, threads)

	for _, batch := range batches {
		wg.Add(1)
		go func(batch []stockBrief) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := a.callBatch(ctx, batch)
			if err != nil {
				a.logger.WithError(err).Warn("Advice batch failed")
				return
			}
			mu.Lock()
			for code, adv := range result {
				advised[code] = adv
			}
			mu.Unlock()
		}(batch)
	}
	wg.Wait()

	for i := range rows {
		if adv, ok := advised[rows[i].Code]; ok {
			rows[i].Advice = adv.Suggestion
			rows[i].Rationale = adv.Rationale
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"advised": len(advised),
		"rows":    len(rows),
	}).Info("Advice merged")
}

func brief(row *analyze.Row) stockBrief {
	s := row.Snapshot
	return stockBrief{
		Code:           row.Code,
		Name:           row.Name,
		BuyPrice:       s.Close,
		Trend:          s.TrendState,
		YearLine:       s.YearLineLabel(),
		MACD:           s.MACDState,
		KDJ:            s.KDJState,
		RSI:            s.RSI,
		VolumeState:    s.VolumeState,
		VolumeRatio:    s.VolumeRatio,
		ResistanceDist: s.ResistanceDist,
		SupportDist:    s.SupportDist,
		Trajectory:     s.RecentTrajectory,
		MatchReason:    row.Reason,
	}
}

// callBatch sends one batch and parses the verdicts. Retries are
// bounded; 4xx responses other than 429 are not retried.
func (a *Advisor) callBatch(ctx context.Context, batch []stockBrief) (map[string]Advice, error) {
	userContent, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model": a.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": string(userContent)},
		},
		"temperature": 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxCallAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, retryable, err := a.doCall(ctx, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		a.logger.WithError(err).WithField("attempt", attempt).Warn("Advice call retrying")

		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (a *Advisor) doCall(ctx context.Context, payload []byte) (map[string]Advice, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("advice request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read advice response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("advice status %d", resp.StatusCode)
	}

	content := gjson.GetBytes(body, "choices.0.message.content").String()
	if content == "" {
		return nil, true, fmt.Errorf("advice response missing content")
	}

	result, err := parseAdvice(content)
	if err != nil {
		return nil, true, err
	}
	return result, false, nil
}

// parseAdvice extracts the verdict array from the model output, which
// may arrive fenced in markdown or wrapped in an object.
func parseAdvice(content string) (map[string]Advice, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	parsed := gjson.Parse(cleaned)
	items := parsed
	if parsed.IsObject() {
		parsed.ForEach(func(_, value gjson.Result) bool {
			if value.IsArray() {
				items = value
				return false
			}
			return true
		})
		if items.IsObject() && parsed.Get("code").Exists() {
			items = gjson.Parse("[" + cleaned + "]")
		}
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("advice content is not a JSON array")
	}

	out := make(map[string]Advice)
	items.ForEach(func(_, item gjson.Result) bool {
		code := item.Get("code").String()
		if code == "" {
			return true
		}
		out[code] = Advice{
			Suggestion: item.Get("suggestion").String(),
			Rationale:  item.Get("reason").String(),
		}
		return true
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("advice content held no verdicts")
	}
	return out, nil
}

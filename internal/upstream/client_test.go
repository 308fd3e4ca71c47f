package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stockhunter/stockhunter/pkg/httputil"
	"github.com/stockhunter/stockhunter/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	httpClient := httputil.New(logger.NewNop(), 5*time.Second).DisableRetry()
	return NewClient(srv.URL, httpClient, 1000, logger.NewNop())
}

func TestLoginAndQueryDailyBars(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			fmt.Fprint(w, `{"error_code":"0","access_token":"tok-1"}`)
		case "/query/history_k_data":
			if r.URL.Query().Get("access_token") != "tok-1" {
				t.Errorf("missing access token")
			}
			if r.URL.Query().Get("adjustflag") != "2" {
				t.Errorf("expected back-adjusted request")
			}
			fmt.Fprint(w, `{"error_code":"0","error_msg":"success","data":{"items":[
				["2024-01-02","sh.600000","10.1","10.5","10.0","10.3","120000","1236000.0","2","0.55","1.2"],
				["2024-01-03","sh.600000","10.3","10.8","10.2","10.7","150000","1605000.0","2","0.61","3.88"]
			]}}`)
		case "/logout":
			fmt.Fprint(w, `{"error_code":"0"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}

	c := newTestClient(t, handler)
	ctx := context.Background()

	session, err := c.Login(ctx)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	defer session.Logout(ctx)

	bars, err := session.QueryDailyBars(ctx, "sh.600000", "2024-01-01", "2024-01-05")
	if err != nil {
		t.Fatalf("QueryDailyBars failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Date != "2024-01-02" || bars[0].Close != 10.3 {
		t.Errorf("unexpected first bar: %+v", bars[0])
	}
	if bars[1].PctChg != 3.88 || bars[1].Turn != "0.61" {
		t.Errorf("unexpected second bar: %+v", bars[1])
	}
}

func TestQueryDailyBarsEmptyIsSuccess(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			fmt.Fprint(w, `{"error_code":"0","access_token":"t"}`)
		default:
			fmt.Fprint(w, `{"error_code":"0","error_msg":"success","data":{"items":[]}}`)
		}
	}

	c := newTestClient(t, handler)
	session, err := c.Login(context.Background())
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	bars, err := session.QueryDailyBars(context.Background(), "sh.600000", "2024-01-01", "2024-01-01")
	if err != nil {
		t.Fatalf("empty response must be success, got %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("expected no bars, got %d", len(bars))
	}
}

func TestQueryDailyBarsNonZeroStatus(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			fmt.Fprint(w, `{"error_code":"0","access_token":"t"}`)
		default:
			fmt.Fprint(w, `{"error_code":"10004","error_msg":"request limit"}`)
		}
	}

	c := newTestClient(t, handler)
	session, err := c.Login(context.Background())
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	_, err = session.QueryDailyBars(context.Background(), "sh.600000", "2024-01-01", "2024-01-01")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Code != "10004" {
		t.Errorf("expected code 10004, got %s", reqErr.Code)
	}
}

func TestLoginFailure(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error_code":"10001","error_msg":"bad credentials"}`)
	}

	c := newTestClient(t, handler)
	if _, err := c.Login(context.Background()); !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestQueryUniverseWalksBackOverHolidays(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	tradingDay := "2024-03-08"

	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			fmt.Fprint(w, `{"error_code":"0","access_token":"t"}`)
		case "/logout":
			fmt.Fprint(w, `{"error_code":"0"}`)
		case "/query/all_stock":
			if r.URL.Query().Get("day") != tradingDay {
				// Weekend: empty listing.
				fmt.Fprint(w, `{"error_code":"0","data":{"items":[]}}`)
				return
			}
			fmt.Fprint(w, universeBody(4200))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}

	c := newTestClient(t, handler)
	universe, err := c.QueryUniverse(context.Background(), now)
	if err != nil {
		t.Fatalf("QueryUniverse failed: %v", err)
	}
	if len(universe) == 0 {
		t.Fatal("expected non-empty universe")
	}
	for _, sym := range universe {
		if !IsTrackedCode(sym.Code) {
			t.Errorf("untracked code leaked through: %s", sym.Code)
		}
	}
}

func TestQueryUniverseRejectsBoundaryListing(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	fullDay := "2024-03-07"

	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			fmt.Fprint(w, `{"error_code":"0","access_token":"t"}`)
		case "/logout":
			fmt.Fprint(w, `{"error_code":"0"}`)
		case "/query/all_stock":
			if r.URL.Query().Get("day") == fullDay {
				fmt.Fprint(w, universeBody(4001))
				return
			}
			// Exactly 4000 rows is still a partial listing.
			fmt.Fprint(w, universeBody(4000))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}

	c := newTestClient(t, handler)
	universe, err := c.QueryUniverse(context.Background(), now)
	if err != nil {
		t.Fatalf("QueryUniverse failed: %v", err)
	}
	// 4001 rows, odd indices excluded: 2001 tracked codes.
	if len(universe) != 2001 {
		t.Errorf("universe size = %d, want 2001 from the 4001-row day", len(universe))
	}
}

// universeBody builds a listing with n rows, half tracked and half on
// excluded boards.
func universeBody(n int) string {
	body := `{"error_code":"0","data":{"items":[`
	for i := 0; i < n; i++ {
		if i > 0 {
			body += ","
		}
		code := fmt.Sprintf("sh.6%05d", i)
		if i%2 == 1 {
			code = fmt.Sprintf("sh.9%05d", i) // B-share board, excluded
		}
		body += fmt.Sprintf(`["%s","1","股票%d"]`, code, i)
	}
	return body + `]}}`
}

func TestIsTrackedCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"sh.600000", true},
		{"sz.000001", true},
		{"sz.300750", true},
		{"bj.830799", true},
		{"sh.900901", false}, // B share
		{"sz.200011", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsTrackedCode(tt.code); got != tt.want {
			t.Errorf("IsTrackedCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

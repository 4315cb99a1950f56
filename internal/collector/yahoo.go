package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"smc-predictor/internal/model"
	"smc-predictor/internal/service"
)

// YahooFetcher 通过 Yahoo Finance chart 接口获取 K 线
type YahooFetcher struct {
	Client    *http.Client
	BaseURL   string
	SymbolMap map[string]string // 内部品种 -> Yahoo 代码
}

// NewYahooFetcher 创建 Yahoo 数据源，baseURL 为空时使用公共地址
func NewYahooFetcher(baseURL string, timeout time.Duration) *YahooFetcher {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooFetcher{
		Client:  &http.Client{Timeout: timeout},
		BaseURL: strings.TrimRight(baseURL, "/"),
		SymbolMap: map[string]string{
			"XAUUSD": "GC=F",
			"GOLD":   "GC=F",
			"XAGUSD": "SI=F",
			"USDARS": "ARS=X",
			"USDMXN": "MXN=X",
			"USDBRL": "BRL=X",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooSymbol 去掉 _OTC 后缀；六位字母的货币对加 "=X"
func (f *YahooFetcher) yahooSymbol(symbol string) string {
	s := strings.TrimSuffix(strings.ToUpper(symbol), "_OTC")
	if mapped, ok := f.SymbolMap[s]; ok {
		return mapped
	}
	if len(s) == 6 && isLetters(s) {
		return s + "=X"
	}
	return s
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// yahooInterval 把周期映射到 Yahoo 支持的 interval。
// 4h 没有原生支持，取 1h 再重采样。
func yahooInterval(timeframe string) (interval string, resample time.Duration, err error) {
	switch timeframe {
	case "1m", "2m", "5m", "15m", "30m", "1d":
		return timeframe, 0, nil
	case "1h":
		return "60m", 0, nil
	case "4h":
		return "60m", 4 * time.Hour, nil
	default:
		return "", 0, fmt.Errorf("yahoo: unsupported timeframe %q", timeframe)
	}
}

// yahooRange 选择能覆盖 limit 根 K 线的最小 range，周末按 1.5 倍留余量
func yahooRange(d time.Duration, limit int) string {
	span := time.Duration(float64(d) * float64(limit) * 1.5)
	day := 24 * time.Hour
	switch {
	case span <= day:
		return "1d"
	case span <= 5*day:
		return "5d"
	case span <= 30*day:
		return "1mo"
	case span <= 90*day:
		return "3mo"
	case span <= 180*day:
		return "6mo"
	case span <= 365*day:
		return "1y"
	default:
		return "2y"
	}
}

// yahooChart 是 chart 接口的响应结构
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func valueAt(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func (f *YahooFetcher) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]model.Bar, error) {
	interval, resample, err := yahooInterval(timeframe)
	if err != nil {
		return nil, err
	}
	d, err := service.ParseIntervalDuration(timeframe)
	if err != nil {
		return nil, err
	}

	bars, err := f.fetchChart(ctx, symbol, interval, yahooRange(d, limit))
	if err != nil {
		return nil, err
	}
	if resample > 0 {
		bars = model.Resample(bars, resample)
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol, interval, rng string) ([]model.Bar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, ErrNoData)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.Bar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o := valueAt(quote.Open, i)
		h := valueAt(quote.High, i)
		l := valueAt(quote.Low, i)
		c := valueAt(quote.Close, i)
		if o == 0 || h == 0 || l == 0 || c == 0 {
			continue // 休市的空 K 线
		}
		bars = append(bars, model.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: valueAt(quote.Volume, i),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, ErrNoData)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return dedupe(bars), nil
}

// dedupe 去掉时间戳重复的 K 线 (Yahoo 偶尔把当前未完成 K 线重复返回)
func dedupe(bars []model.Bar) []model.Bar {
	out := bars[:0]
	for _, b := range bars {
		if len(out) > 0 && !b.Time.After(out[len(out)-1].Time) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// Package opendata はNYCオープンデータ（Open Parking and Camera Violations）の検索クライアントを提供する。
// 認証は不要。アプリトークンが設定されている場合はレート制限緩和のために送信する。
package opendata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/rydora/internal/normalize"
)

const (
	// DefaultEndpoint はOpen Parking and Camera ViolationsデータセットのSODAエンドポイント。
	DefaultEndpoint = "https://data.cityofnewyork.us/resource/nc67-uf89.json"
	// DefaultLimit は1回の検索で取得する最大件数の既定値。
	DefaultLimit = 1000
	// MaxLimit は1回の検索で取得できる最大件数。
	MaxLimit = 5000

	operationName   = "nyc-violations"
	maxResponseSize = 16 << 20
	issueDateLayout = "01/02/2006"
	queryDateLayout = "2006-01-02"
)

// ErrInvalidQuery は検索条件の形式が不正であることを表す。
var ErrInvalidQuery = errors.New("invalid open data query")

// Recorder はオープンデータ呼び出しのメトリクス記録先。
type Recorder interface {
	RecordUpstreamRequest(operation string, statusCode int, duration time.Duration)
}

// Violation はNYCの駐車・カメラ違反1件。
type Violation struct {
	SummonsNumber  string  `json:"summonsNumber"`
	Plate          string  `json:"plate"`
	State          string  `json:"state"`
	LicenseType    string  `json:"licenseType"`
	IssueDate      *string `json:"issueDate"`
	ViolationTime  string  `json:"violationTime"`
	Violation      string  `json:"violation"`
	FineAmount     float64 `json:"fineAmount"`
	PenaltyAmount  float64 `json:"penaltyAmount"`
	InterestAmount float64 `json:"interestAmount"`
	PaymentAmount  float64 `json:"paymentAmount"`
	AmountDue      float64 `json:"amountDue"`
	Precinct       string  `json:"precinct"`
	County         string  `json:"county"`
	IssuingAgency  string  `json:"issuingAgency"`
	Status         string  `json:"violationStatus"`
	SummonsImage   *string `json:"summonsImage"`
}

// Query は検索条件。DateFrom/DateToはYYYY-MM-DD形式（空なら無制限）。
type Query struct {
	Plates   []string
	DateFrom string
	DateTo   string
	Limit    int
	Offset   int
}

// Result はフロントエンドに返す検索結果。RowsとDataは同じ内容を持つ。
type Result struct {
	Rows       []Violation `json:"rows"`
	Data       []Violation `json:"data"`
	TotalCount int         `json:"totalCount"`
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
}

// EmptyResult は0件の検索結果を返す。
func EmptyResult() Result {
	return Result{
		Rows:       []Violation{},
		Data:       []Violation{},
		TotalCount: 0,
		Page:       1,
		TotalPages: 0,
	}
}

// Client はSODA APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	recorder   Recorder
	endpoint   string
	appToken   string
}

// NewClient はClientを生成する。endpointが空の場合はDefaultEndpointを使う。
// 本番ではsecurity.NewPublicClientで生成したクライアントを渡す。
func NewClient(httpClient *http.Client, endpoint, appToken string, logger *slog.Logger, recorder Recorder) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		recorder:   recorder,
		endpoint:   endpoint,
		appToken:   appToken,
	}
}

// Search はナンバープレートで違反を検索する。
// プレートが1件もない場合は外部呼び出しを行わず空の結果を返す。
// 発行日の範囲はデータセットの発行日がMM/DD/YYYYの文字列のため取得後に絞り込む。
func (c *Client) Search(ctx context.Context, q Query) (Result, error) {
	plates := cleanPlates(q.Plates)
	if len(plates) == 0 {
		return EmptyResult(), nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	from, to, err := parseRange(q.DateFrom, q.DateTo)
	if err != nil {
		return Result{}, err
	}

	// 1. SoQLクエリ構築
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse open data endpoint: %w", err)
	}
	params := reqURL.Query()
	params.Set("$where", buildWhere(plates))
	params.Set("$limit", strconv.Itoa(limit))
	params.Set("$offset", strconv.Itoa(offset))
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	// 2. 呼び出し
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(0, start)
		c.logger.Error("open data request failed",
			slog.String("error", err.Error()),
			slog.Int("plate_count", len(plates)),
		)
		return Result{}, fmt.Errorf("open data request failed: %w", err)
	}
	defer resp.Body.Close()
	c.record(resp.StatusCode, start)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read open data response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("open data endpoint returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", truncate(body, 512)),
		)
		return Result{}, fmt.Errorf("open data endpoint returned status %d", resp.StatusCode)
	}

	// 3. 射影と発行日による絞り込み
	var records []normalize.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return Result{}, fmt.Errorf("failed to decode open data response: %w", err)
	}

	rows := make([]Violation, 0, len(records))
	for _, r := range records {
		v := project(r)
		if !inRange(v.IssueDate, from, to) {
			continue
		}
		rows = append(rows, v)
	}

	return Result{
		Rows:       rows,
		Data:       rows,
		TotalCount: len(rows),
		Page:       offset/limit + 1,
		TotalPages: normalize.TotalPages(len(rows), normalize.DefaultPageSize),
	}, nil
}

func (c *Client) record(status int, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordUpstreamRequest(operationName, status, time.Since(start))
	}
}

// cleanPlates は空白除去・大文字化・重複除去を行う。
func cleanPlates(plates []string) []string {
	seen := make(map[string]bool, len(plates))
	out := make([]string, 0, len(plates))
	for _, p := range plates {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// buildWhere はplate in('A','B')形式のSoQL条件を生成する。シングルクォートは二重化する。
func buildWhere(plates []string) string {
	quoted := make([]string, len(plates))
	for i, p := range plates {
		quoted[i] = "'" + strings.ReplaceAll(p, "'", "''") + "'"
	}
	return "plate in(" + strings.Join(quoted, ",") + ")"
}

func parseRange(fromStr, toStr string) (from, to time.Time, err error) {
	if fromStr != "" {
		if from, err = time.Parse(queryDateLayout, fromStr); err != nil {
			return from, to, fmt.Errorf("%w: dateFrom %q must be YYYY-MM-DD", ErrInvalidQuery, fromStr)
		}
	}
	if toStr != "" {
		if to, err = time.Parse(queryDateLayout, toStr); err != nil {
			return from, to, fmt.Errorf("%w: dateTo %q must be YYYY-MM-DD", ErrInvalidQuery, toStr)
		}
	}
	return from, to, nil
}

// inRange は発行日が範囲内かを判定する。範囲指定がない場合、または発行日が解釈できない場合は含める。
func inRange(issueDate *string, from, to time.Time) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	if issueDate == nil {
		return true
	}
	d, err := time.Parse(issueDateLayout, *issueDate)
	if err != nil {
		return true
	}
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

func project(r normalize.Record) Violation {
	var image *string
	if u := r.Object("summons_image").String("url"); u != "" {
		image = &u
	}
	return Violation{
		SummonsNumber:  r.String("summons_number"),
		Plate:          r.String("plate"),
		State:          r.String("state"),
		LicenseType:    r.String("license_type"),
		IssueDate:      r.NullableString("issue_date"),
		ViolationTime:  r.String("violation_time"),
		Violation:      r.String("violation"),
		FineAmount:     r.Float("fine_amount"),
		PenaltyAmount:  r.Float("penalty_amount"),
		InterestAmount: r.Float("interest_amount"),
		PaymentAmount:  r.Float("payment_amount"),
		AmountDue:      r.Float("amount_due"),
		Precinct:       r.String("precinct"),
		County:         r.String("county"),
		IssuingAgency:  r.String("issuing_agency"),
		Status:         r.String("violation_status"),
		SummonsImage:   image,
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

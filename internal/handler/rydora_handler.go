package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rydora/internal/middleware"
	"github.com/hitoshi/rydora/internal/model"
	"github.com/hitoshi/rydora/internal/opendata"
	"github.com/hitoshi/rydora/internal/rydora"
	"github.com/hitoshi/rydora/internal/upstream"
)

// maxRequestBody はプロバイダーへ転送するリクエストボディの上限。
const maxRequestBody = 1 << 20

// RydoraServiceInterface はプロキシハンドラーが必要とするサービスインターフェース。
type RydoraServiceInterface interface {
	EzPassCharges(ctx context.Context, t rydora.Target, q rydora.ListQuery) (any, error)
	ParkingViolations(ctx context.Context, t rydora.Target, q rydora.ListQuery) (any, error)
	Tolls(ctx context.Context, t rydora.Target, q rydora.ListQuery) (any, error)
	PendingPayments(ctx context.Context, t rydora.Target, q rydora.ListQuery) (any, error)
	Invoices(ctx context.Context, t rydora.Target, q rydora.ListQuery) (any, error)
	Cars(ctx context.Context, t rydora.Target, q rydora.ListQuery) (any, error)
	Companies(ctx context.Context, t rydora.Target, q rydora.ListQuery) (any, error)

	UpdatePaymentStatus(ctx context.Context, t rydora.Target, u rydora.PaymentStatusUpdate) (any, error)
	InvoiceByDate(ctx context.Context, t rydora.Target, companyID, date string) (any, error)
	SubmitInvoice(ctx context.Context, t rydora.Target, id string) (any, error)
	FailInvoice(ctx context.Context, t rydora.Target, id, reason string) (any, error)
	SendInvoiceEmail(ctx context.Context, t rydora.Target, id string, email rydora.InvoiceEmail) (any, error)

	Get(ctx context.Context, t rydora.Target, res rydora.Resource, id string) (any, error)
	Create(ctx context.Context, t rydora.Target, res rydora.Resource, body json.RawMessage) (any, error)
	Update(ctx context.Context, t rydora.Target, res rydora.Resource, id string, body json.RawMessage) (any, error)
	Delete(ctx context.Context, t rydora.Target, res rydora.Resource, id string) (any, error)
}

// OpenDataSearcher はNYCオープンデータの違反検索インターフェース。
type OpenDataSearcher interface {
	Search(ctx context.Context, q opendata.Query) (opendata.Result, error)
}

// RydoraHandler はプロバイダーへのプロキシHTTPハンドラー。
type RydoraHandler struct {
	service  RydoraServiceInterface
	openData OpenDataSearcher
	resolver *upstream.EnvironmentResolver
	selector *upstream.CredentialSelector
}

// NewRydoraHandler はRydoraHandlerを生成する。
func NewRydoraHandler(
	service RydoraServiceInterface,
	openData OpenDataSearcher,
	resolver *upstream.EnvironmentResolver,
	selector *upstream.CredentialSelector,
) *RydoraHandler {
	return &RydoraHandler{
		service:  service,
		openData: openData,
		resolver: resolver,
		selector: selector,
	}
}

// target はリクエストから呼び出し先の環境と転送する認証情報を決める。
// セッションのトークンは、そのトークンを発行した環境へのリクエストにのみ使う。
func (h *RydoraHandler) target(r *http.Request) rydora.Target {
	hint := r.Header.Get(upstream.EnvironmentHeader)
	in := upstream.CredentialInput{Header: r.Header}
	if sess := middleware.SessionFromContext(r.Context()); sess != nil {
		if sess.Environment == "" || sess.Environment == h.resolver.Environment(hint) {
			in.SessionToken = sess.ProviderToken
		}
	}
	cred := h.selector.Select(in)
	return rydora.Target{
		Environment:   hint,
		Authorization: cred.Header(),
	}
}

// listQuery はクエリパラメータから一覧の条件を組み立てる。pageの既定値は1。
func listQuery(r *http.Request) rydora.ListQuery {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return rydora.ListQuery{
		DateFrom:  q.Get("dateFrom"),
		DateTo:    q.Get("dateTo"),
		OwnerID:   q.Get("ownerId"),
		CompanyID: q.Get("companyId"),
		Page:      page,
	}
}

type listFunc func(ctx context.Context, t rydora.Target, q rydora.ListQuery) (any, error)

// list は一覧操作のハンドラーを組み立てる。
func (h *RydoraHandler) list(fn listFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r.Context(), h.target(r), listQuery(r))
		h.respond(w, out, err)
	}
}

// EzPassCharges は GET /api/rydora/ezpass を処理する。
func (h *RydoraHandler) EzPassCharges(w http.ResponseWriter, r *http.Request) {
	h.list(h.service.EzPassCharges)(w, r)
}

// ParkingViolations は GET /api/rydora/parking-violations を処理する。
func (h *RydoraHandler) ParkingViolations(w http.ResponseWriter, r *http.Request) {
	h.list(h.service.ParkingViolations)(w, r)
}

// Tolls は GET /api/rydora/tolls を処理する。
func (h *RydoraHandler) Tolls(w http.ResponseWriter, r *http.Request) {
	h.list(h.service.Tolls)(w, r)
}

// PendingPayments は GET /api/rydora/pending-payments を処理する。
func (h *RydoraHandler) PendingPayments(w http.ResponseWriter, r *http.Request) {
	h.list(h.service.PendingPayments)(w, r)
}

// Invoices は GET /api/rydora/invoices を処理する。
func (h *RydoraHandler) Invoices(w http.ResponseWriter, r *http.Request) {
	h.list(h.service.Invoices)(w, r)
}

// Cars は GET /api/rydora/cars を処理する。
func (h *RydoraHandler) Cars(w http.ResponseWriter, r *http.Request) {
	h.list(h.service.Cars)(w, r)
}

// Companies は GET /api/rydora/companies を処理する。
func (h *RydoraHandler) Companies(w http.ResponseWriter, r *http.Request) {
	h.list(h.service.Companies)(w, r)
}

// NYCViolations はナンバープレートでNYCの違反を検索する。認証情報は使わない。
// GET /api/rydora/nyc-violations?licensePlates=["ABC1234"]&dateFrom&dateTo&limit&offset
func (h *RydoraHandler) NYCViolations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// 1. licensePlatesはJSON配列の文字列
	var plates []string
	if raw := strings.TrimSpace(q.Get("licensePlates")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &plates); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("licensePlates must be a JSON array of strings"))
			return
		}
	}

	// 2. limit/offsetは整数
	limit, ok := intParam(w, q.Get("limit"), "limit")
	if !ok {
		return
	}
	offset, ok := intParam(w, q.Get("offset"), "offset")
	if !ok {
		return
	}

	// 3. 検索
	result, err := h.openData.Search(r.Context(), opendata.Query{
		Plates:   plates,
		DateFrom: q.Get("dateFrom"),
		DateTo:   q.Get("dateTo"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		if errors.Is(err, opendata.ErrInvalidQuery) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(err.Error()))
			return
		}
		slog.Error("failed to search NYC violations", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusInternalServerError,
			model.NewUpstreamUnavailableError("fetch NYC violations"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// intParam は整数のクエリパラメータを読む。空の場合は0。不正な場合は400を書き込みfalseを返す。
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError(fmt.Sprintf("%s must be a non-negative integer", name)))
		return 0, false
	}
	return n, true
}

// UpdatePaymentStatus は違反の支払い状態を一括更新する。
// PUT /api/rydora/ExternalViolation/update-payment-status
func (h *RydoraHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req rydora.PaymentStatusUpdate
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid request body"))
		return
	}
	if len(req.IDs) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("ids must not be empty"))
		return
	}
	if strings.TrimSpace(req.PaymentStatus) == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("paymentStatus is required"))
		return
	}

	out, err := h.service.UpdatePaymentStatus(r.Context(), h.target(r), req)
	h.respond(w, out, err)
}

// InvoiceByDate は会社と日付で請求書を取得する。該当なしはnullを返す。
// GET /api/rydora/invoices/by-date?companyId&date
func (h *RydoraHandler) InvoiceByDate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	companyID, date := q.Get("companyId"), q.Get("date")
	if companyID == "" || date == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("companyId and date are required"))
		return
	}
	out, err := h.service.InvoiceByDate(r.Context(), h.target(r), companyID, date)
	h.respond(w, out, err)
}

// SubmitInvoice は POST /api/rydora/invoices/{id}/submit を処理する。
func (h *RydoraHandler) SubmitInvoice(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.SubmitInvoice(r.Context(), h.target(r), chi.URLParam(r, "id"))
	h.respond(w, out, err)
}

// FailInvoice は POST /api/rydora/invoices/{id}/fail を処理する。
func (h *RydoraHandler) FailInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid request body"))
		return
	}
	out, err := h.service.FailInvoice(r.Context(), h.target(r), chi.URLParam(r, "id"), req.Reason)
	h.respond(w, out, err)
}

// SendInvoiceEmail は POST /api/rydora/invoices/{id}/send-email を処理する。
func (h *RydoraHandler) SendInvoiceEmail(w http.ResponseWriter, r *http.Request) {
	var req rydora.InvoiceEmail
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid request body"))
		return
	}
	recipients := req.To[:0]
	for _, to := range req.To {
		if to = strings.TrimSpace(to); to != "" {
			recipients = append(recipients, to)
		}
	}
	if len(recipients) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("at least one recipient is required"))
		return
	}
	req.To = recipients

	out, err := h.service.SendInvoiceEmail(r.Context(), h.target(r), chi.URLParam(r, "id"), req)
	h.respond(w, out, err)
}

// GetResource はリソース1件取得のハンドラーを返す。
func (h *RydoraHandler) GetResource(res rydora.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.service.Get(r.Context(), h.target(r), res, chi.URLParam(r, "id"))
		h.respond(w, out, err)
	}
}

// CreateResource はリソース作成のハンドラーを返す。ボディは検証せずに転送する。
func (h *RydoraHandler) CreateResource(res rydora.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readJSONBody(w, r)
		if !ok {
			return
		}
		out, err := h.service.Create(r.Context(), h.target(r), res, body)
		h.respond(w, out, err)
	}
}

// UpdateResource はリソース更新のハンドラーを返す。
func (h *RydoraHandler) UpdateResource(res rydora.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readJSONBody(w, r)
		if !ok {
			return
		}
		out, err := h.service.Update(r.Context(), h.target(r), res, chi.URLParam(r, "id"), body)
		h.respond(w, out, err)
	}
}

// DeleteResource はリソース削除のハンドラーを返す。
func (h *RydoraHandler) DeleteResource(res rydora.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.service.Delete(r.Context(), h.target(r), res, chi.URLParam(r, "id"))
		h.respond(w, out, err)
	}
}

// readJSONBody はボディを読み込み、JSONとして妥当かだけを確認する。空のボディは許容する。
func readJSONBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil || len(body) > maxRequestBody {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid request body"))
		return nil, false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, true
	}
	if !json.Valid(body) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Request body must be JSON"))
		return nil, false
	}
	return body, true
}

// respond はサービスの結果をHTTPレスポンスに変換する。
//
//   - InvoiceError → プロバイダーのステータスと定型メッセージ
//   - StatusError → プロバイダーのステータスとボディをそのまま返す
//   - OperationError（通信失敗・タイムアウト） → 500と操作説明
func (h *RydoraHandler) respond(w http.ResponseWriter, out any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, out)
		return
	}

	var ie *rydora.InvoiceError
	if errors.As(err, &ie) {
		apiErr := model.NewBadRequestError()
		if ie.NotFound() {
			apiErr = model.NewInvoiceNotFoundError()
		}
		middleware.WriteErrorResponse(w, ie.StatusCode, apiErr)
		return
	}

	if se, ok := upstream.AsStatusError(err); ok {
		writeUpstreamBody(w, se)
		return
	}

	var oe *rydora.OperationError
	if errors.As(err, &oe) {
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewUpstreamUnavailableError(oe.Description))
		return
	}

	slog.Error("unexpected proxy error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// writeUpstreamBody はプロバイダーの業務エラーをステータスとボディのまま返す。
func writeUpstreamBody(w http.ResponseWriter, se *upstream.StatusError) {
	if len(se.Body) > 0 && json.Valid(se.Body) {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(se.StatusCode)
	w.Write(se.Body)
}

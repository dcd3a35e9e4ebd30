package rydora

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/hitoshi/rydora/internal/normalize"
	"github.com/hitoshi/rydora/internal/upstream"
)

// Target はリクエスト単位の呼び出し先。環境ヒントと転送するAuthorizationヘッダー値を持つ。
type Target struct {
	Environment   string
	Authorization string
}

// ListQuery は一覧操作のクエリ。空の項目はプロバイダーへ送らない。
type ListQuery struct {
	DateFrom  string
	DateTo    string
	OwnerID   string
	CompanyID string
	Page      int
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("dateFrom", q.DateFrom)
	set("dateTo", q.DateTo)
	set("ownerId", q.OwnerID)
	set("companyId", q.CompanyID)
	return v
}

// PaymentStatusUpdate は違反の支払い状態の一括更新。
type PaymentStatusUpdate struct {
	IDs           []int64 `json:"ids"`
	PaymentStatus string  `json:"paymentStatus"`
	CompanyID     *int64  `json:"companyId,omitempty"`
}

// InvoiceEmail は請求書メールの送信内容。
type InvoiceEmail struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Message string   `json:"message"`
}

// OperationError は操作の失敗を利用者向けの操作説明とともに保持する。
type OperationError struct {
	Description string
	Err         error
}

// Error はerrorインターフェースを実装する。
func (e *OperationError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Description, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *OperationError) Unwrap() error {
	return e.Err
}

// InvoiceError は請求書の書き込み操作がプロバイダーに拒否されたことを表す。
// StatusCodeはプロバイダーのステータスをそのまま保持する。
type InvoiceError struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *InvoiceError) Error() string {
	return fmt.Sprintf("invoice operation rejected (%d): %s", e.StatusCode, e.Message)
}

// NotFound は請求書が存在しないことを表すかを返す。
func (e *InvoiceError) NotFound() bool {
	return normalize.IsInvoiceNotFound(e.Message)
}

// Sanitizer は利用者が入力したメール内容を無害化する。
type Sanitizer interface {
	Body(raw string) string
	Subject(raw string) string
}

// Service はプロバイダーへのプロキシ操作を提供する。
// 戻り値はそのままJSONとしてフロントエンドへ返せる値。
type Service struct {
	resolver  *upstream.EnvironmentResolver
	clients   *upstream.ClientFactory
	invoker   *upstream.FallbackInvoker
	sanitizer Sanitizer
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	resolver *upstream.EnvironmentResolver,
	clients *upstream.ClientFactory,
	invoker *upstream.FallbackInvoker,
	sanitizer Sanitizer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver:  resolver,
		clients:   clients,
		invoker:   invoker,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// --- 一覧 ---

// EzPassCharges はEZ-Passの請求一覧を返す。
func (s *Service) EzPassCharges(ctx context.Context, t Target, q ListQuery) (any, error) {
	return list(ctx, s, t, OpEzPassCharges, q, normalize.EzPassCharge)
}

// ParkingViolations は駐車違反の一覧を返す。
func (s *Service) ParkingViolations(ctx context.Context, t Target, q ListQuery) (any, error) {
	return list(ctx, s, t, OpParkingViolations, q, normalize.ParkingViolation)
}

// Tolls は通行料の一覧を返す。
func (s *Service) Tolls(ctx context.Context, t Target, q ListQuery) (any, error) {
	return list(ctx, s, t, OpTolls, q, normalize.Toll)
}

// PendingPayments は未払い項目の一覧を返す。
func (s *Service) PendingPayments(ctx context.Context, t Target, q ListQuery) (any, error) {
	return list(ctx, s, t, OpPendingPayments, q, normalize.PendingPayment)
}

// Invoices は日次請求書の一覧を返す。
func (s *Service) Invoices(ctx context.Context, t Target, q ListQuery) (any, error) {
	return list(ctx, s, t, OpInvoices, q, normalize.Invoice)
}

// Cars は車両の一覧を返す。
func (s *Service) Cars(ctx context.Context, t Target, q ListQuery) (any, error) {
	return list(ctx, s, t, OpCars, q, normalize.Car)
}

// Companies は会社の一覧を返す。
func (s *Service) Companies(ctx context.Context, t Target, q ListQuery) (any, error) {
	return list(ctx, s, t, OpCompanies, q, normalize.Company)
}

// list は候補パスを順に試し、応答を一覧の共通形式に正規化する。
// 全候補が404の場合は0件の一覧を返す。
func list[T any](ctx context.Context, s *Service, t Target, op upstream.Operation, q ListQuery, project func(normalize.Record) T) (any, error) {
	client := s.clients.ForOperation(s.resolver.Resolve(t.Environment), op)
	resp, err := s.invoker.Get(ctx, client, op.Paths, upstream.Request{
		Operation:     op.Name,
		Query:         q.values(),
		Authorization: t.Authorization,
	})
	if err != nil {
		if upstream.IsNotFound(err) {
			return normalize.EmptyPage(q.Page), nil
		}
		return nil, s.fail(op, err)
	}
	return normalize.List(resp.Body, q.Page, normalize.DefaultPageSize, project), nil
}

// --- 個別操作 ---

// UpdatePaymentStatus は違反の支払い状態を一括更新する。
func (s *Service) UpdatePaymentStatus(ctx context.Context, t Target, u PaymentStatusUpdate) (any, error) {
	return s.write(ctx, t, OpUpdatePaymentStatus, u)
}

// InvoiceByDate は会社と日付で請求書を取得する。該当日の請求書がない場合はnilを返す。
func (s *Service) InvoiceByDate(ctx context.Context, t Target, companyID, date string) (any, error) {
	op := OpInvoiceByDate
	client := s.clients.ForOperation(s.resolver.Resolve(t.Environment), op)
	resp, err := s.invoker.Get(ctx, client, op.Paths, upstream.Request{
		Operation:     op.Name,
		Query:         url.Values{"companyId": {companyID}, "date": {date}},
		Authorization: t.Authorization,
	})
	if err != nil {
		if se, ok := upstream.AsStatusError(err); ok && normalize.IsNotFoundForDate(se.StatusCode, se.Body) {
			return nil, nil
		}
		return nil, s.fail(op, err)
	}
	return normalize.Passthrough(resp.Body), nil
}

// SubmitInvoice は請求書を提出する。
// 「指定日の請求書なし」の404はnilを返す。それ以外の拒否はInvoiceErrorになる。
func (s *Service) SubmitInvoice(ctx context.Context, t Target, id string) (any, error) {
	out, err := s.write(ctx, t, OpSubmitInvoice.Expand(map[string]string{"id": id}), nil)
	if err == nil {
		return out, nil
	}
	se, ok := upstream.AsStatusError(err)
	if !ok {
		return nil, err
	}
	if normalize.IsNotFoundForDate(se.StatusCode, se.Body) {
		return nil, nil
	}
	status, msg := normalize.InvoiceWriteError(se.StatusCode, se.Body)
	return nil, &InvoiceError{StatusCode: status, Message: msg}
}

// FailInvoice は請求書を失敗状態にする。
func (s *Service) FailInvoice(ctx context.Context, t Target, id, reason string) (any, error) {
	out, err := s.write(ctx, t, OpFailInvoice.Expand(map[string]string{"id": id}), map[string]string{"reason": reason})
	if err == nil {
		return out, nil
	}
	se, ok := upstream.AsStatusError(err)
	if !ok {
		return nil, err
	}
	status, msg := normalize.InvoiceWriteError(se.StatusCode, se.Body)
	return nil, &InvoiceError{StatusCode: status, Message: msg}
}

// SendInvoiceEmail は請求書メールを送信する。件名と本文は転送前に無害化する。
func (s *Service) SendInvoiceEmail(ctx context.Context, t Target, id string, email InvoiceEmail) (any, error) {
	if s.sanitizer != nil {
		email.Subject = s.sanitizer.Subject(email.Subject)
		email.Message = s.sanitizer.Body(email.Message)
	}
	return s.write(ctx, t, OpSendInvoiceEmail.Expand(map[string]string{"id": id}), email)
}

// --- CRUD ---

// Get はリソースを1件取得する。
func (s *Service) Get(ctx context.Context, t Target, res Resource, id string) (any, error) {
	op := res.Get.Expand(map[string]string{"id": id})
	client := s.clients.ForOperation(s.resolver.Resolve(t.Environment), op)
	resp, err := s.invoker.Get(ctx, client, op.Paths, upstream.Request{
		Operation:     op.Name,
		Authorization: t.Authorization,
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	return normalize.Passthrough(resp.Body), nil
}

// Create はリソースを作成する。bodyはクライアントのJSONをそのまま転送する。
func (s *Service) Create(ctx context.Context, t Target, res Resource, body json.RawMessage) (any, error) {
	return s.write(ctx, t, res.Create, body)
}

// Update はリソースを更新する。
func (s *Service) Update(ctx context.Context, t Target, res Resource, id string, body json.RawMessage) (any, error) {
	return s.write(ctx, t, res.Update.Expand(map[string]string{"id": id}), body)
}

// Delete はリソースを削除する。
func (s *Service) Delete(ctx context.Context, t Target, res Resource, id string) (any, error) {
	return s.write(ctx, t, res.Delete.Expand(map[string]string{"id": id}), nil)
}

// write は書き込み操作を唯一の正規パスに対して1回だけ呼び出す。
// プロバイダーの業務エラー（*upstream.StatusError）は呼び出し側がそのまま返せるよう保持する。
func (s *Service) write(ctx context.Context, t Target, op upstream.Operation, body any) (any, error) {
	client := s.clients.ForOperation(s.resolver.Resolve(t.Environment), op)
	req := upstream.Request{
		Operation:     op.Name,
		Method:        op.Method,
		Path:          op.Path(),
		Authorization: t.Authorization,
	}
	if raw, ok := body.(json.RawMessage); ok {
		if len(raw) > 0 {
			req.Body = raw
		}
	} else if body != nil {
		req.Body = body
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return normalize.Passthrough(resp.Body), nil
}

// fail は失敗をサーバー側ログに記録し、操作説明を付けたエラーを返す。
// プロバイダーのURLやボディは利用者向けメッセージに含めない。
func (s *Service) fail(op upstream.Operation, err error) error {
	attrs := []any{
		slog.String("operation", op.Name),
		slog.String("error", err.Error()),
	}
	var se *upstream.StatusError
	if errors.As(err, &se) {
		attrs = append(attrs,
			slog.Int("status", se.StatusCode),
			slog.String("path", se.Path),
		)
		s.logger.Warn("upstream operation rejected", attrs...)
	} else {
		s.logger.Error("upstream operation failed", attrs...)
	}
	return &OperationError{Description: op.Description, Err: err}
}

// Package rydora はフリート管理プロバイダーへのプロキシ操作を提供する。
// 各操作はプロバイダー側の候補パス、タイムアウト区分、応答の正規化方法を持つ。
package rydora

import (
	"net/http"

	"github.com/hitoshi/rydora/internal/upstream"
)

// 一覧取得操作。プロバイダーのエンドポイント名がデプロイごとに異なるため候補パスを複数持つ。
var (
	OpEzPassCharges = upstream.Operation{
		Name:        "ezpass.list",
		Description: "fetch EZ-Pass charges",
		Method:      http.MethodGet,
		Paths:       []string{"/api/EzPass/GetCharges", "/api/EzPass/charges", "/api/ExternalEzPass/GetAll"},
		Timeout:     upstream.TimeoutRead,
	}
	OpParkingViolations = upstream.Operation{
		Name:        "parking_violations.list",
		Description: "fetch parking violations",
		Method:      http.MethodGet,
		Paths:       []string{"/api/ParkingViolation/GetAll", "/api/ParkingViolations", "/api/ExternalParkingViolation/GetAll"},
		Timeout:     upstream.TimeoutRead,
	}
	OpTolls = upstream.Operation{
		Name:        "tolls.list",
		Description: "fetch tolls",
		Method:      http.MethodGet,
		Paths:       []string{"/api/Toll/GetAll", "/api/Tolls", "/api/ExternalToll/GetAll"},
		Timeout:     upstream.TimeoutRead,
	}
	OpPendingPayments = upstream.Operation{
		Name:        "pending_payments.list",
		Description: "fetch pending payments",
		Method:      http.MethodGet,
		Paths:       []string{"/api/Payment/GetPending", "/api/Payments/pending", "/api/PendingPayment/GetAll"},
		Timeout:     upstream.TimeoutRead,
	}
	OpInvoices = upstream.Operation{
		Name:        "invoices.list",
		Description: "fetch invoices",
		Method:      http.MethodGet,
		Paths:       []string{"/api/ExternalDailyInvoice", "/api/ExternalDailyInvoice/GetAll", "/api/Invoice/GetAll"},
		Timeout:     upstream.TimeoutRead,
	}
	OpCars = upstream.Operation{
		Name:        "cars.list",
		Description: "fetch cars",
		Method:      http.MethodGet,
		Paths:       []string{"/api/Car/GetAll", "/api/Cars", "/api/Vehicle/GetAll"},
		Timeout:     upstream.TimeoutRead,
	}
	OpCompanies = upstream.Operation{
		Name:        "companies.list",
		Description: "fetch companies",
		Method:      http.MethodGet,
		Paths:       []string{"/api/Company/GetAll", "/api/Companies"},
		Timeout:     upstream.TimeoutRead,
	}
)

// 個別の操作
var (
	OpUpdatePaymentStatus = upstream.Operation{
		Name:        "violations.update_payment_status",
		Description: "update payment status",
		Method:      http.MethodPut,
		Paths:       []string{"/api/ExternalViolation/update-payment-status"},
		Timeout:     upstream.TimeoutWrite,
	}

	// 「指定日の請求書なし」は404本文で表されるため、別パスへのフォールバックで上書きしない
	OpInvoiceByDate = upstream.Operation{
		Name:        "invoices.by_date",
		Description: "fetch invoice by date",
		Method:      http.MethodGet,
		Paths:       []string{"/api/ExternalDailyInvoice/by-date"},
		Timeout:     upstream.TimeoutRead,
	}
	OpSubmitInvoice = upstream.Operation{
		Name:        "invoices.submit",
		Description: "submit invoice",
		Method:      http.MethodPost,
		Paths:       []string{"/api/ExternalDailyInvoice/{id}/submit"},
		Timeout:     upstream.TimeoutWrite,
	}
	OpFailInvoice = upstream.Operation{
		Name:        "invoices.fail",
		Description: "mark invoice as failed",
		Method:      http.MethodPost,
		Paths:       []string{"/api/ExternalDailyInvoice/{id}/fail"},
		Timeout:     upstream.TimeoutWrite,
	}
	OpSendInvoiceEmail = upstream.Operation{
		Name:        "invoices.send_email",
		Description: "send invoice email",
		Method:      http.MethodPost,
		Paths:       []string{"/api/ExternalDailyInvoice/{id}/send-email"},
		Timeout:     upstream.TimeoutHeavy,
	}
)

// Resource はCRUD操作を持つプロバイダーのリソース。
// Getは候補パスを複数持てる。書き込み操作のパスは1つ。
type Resource struct {
	Name   string
	Get    upstream.Operation
	Create upstream.Operation
	Update upstream.Operation
	Delete upstream.Operation
}

// resource はパスの命名規則に従ってResourceを組み立てる。
func resource(name, label, base string, getPaths []string, create upstream.TimeoutClass) Resource {
	return Resource{
		Name: name,
		Get: upstream.Operation{
			Name:        name + ".get",
			Description: "fetch " + label,
			Method:      http.MethodGet,
			Paths:       getPaths,
			Timeout:     upstream.TimeoutRead,
		},
		Create: upstream.Operation{
			Name:        name + ".create",
			Description: "create " + label,
			Method:      http.MethodPost,
			Paths:       []string{base},
			Timeout:     create,
		},
		Update: upstream.Operation{
			Name:        name + ".update",
			Description: "update " + label,
			Method:      http.MethodPut,
			Paths:       []string{base + "/{id}"},
			Timeout:     upstream.TimeoutWrite,
		},
		Delete: upstream.Operation{
			Name:        name + ".delete",
			Description: "delete " + label,
			Method:      http.MethodDelete,
			Paths:       []string{base + "/{id}"},
			Timeout:     upstream.TimeoutWrite,
		},
	}
}

// CRUDリソース
var (
	Violations = resource("violations", "violation", "/api/ExternalViolation",
		[]string{"/api/ExternalViolation/{id}", "/api/Violation/{id}"}, upstream.TimeoutWrite)
	Invoices = resource("invoices", "invoice", "/api/ExternalDailyInvoice",
		[]string{"/api/ExternalDailyInvoice/{id}", "/api/Invoice/{id}"}, upstream.TimeoutHeavy)
	Cars = resource("cars", "car", "/api/Car",
		[]string{"/api/Car/{id}", "/api/Cars/{id}", "/api/Vehicle/{id}"}, upstream.TimeoutHeavy)
	Companies = resource("companies", "company", "/api/Company",
		[]string{"/api/Company/{id}", "/api/Companies/{id}"}, upstream.TimeoutWrite)
)

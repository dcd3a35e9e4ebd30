package model

// フロントエンドへ返す正規化済みレコード。
// プロバイダー側で欠落しているフィールドはnull/0/""で埋める。

// EzPassCharge はEZ-Passの通行料請求を表す。
type EzPassCharge struct {
	ID              int64   `json:"id"`
	PostingDate     *string `json:"postingDate"`
	TransactionDate *string `json:"transactionDate"`
	TagPlateNumber  string  `json:"tagPlateNumber"`
	Agency          string  `json:"agency"`
	Activity        string  `json:"activity"`
	EntryPlaza      string  `json:"entryPlaza"`
	EntryTime       *string `json:"entryTime"`
	ExitPlaza       string  `json:"exitPlaza"`
	ExitTime        *string `json:"exitTime"`
	Amount          float64 `json:"amount"`
	CompanyID       int64   `json:"companyId"`
	CompanyName     string  `json:"companyName"`
	PaymentStatus   string  `json:"paymentStatus"`
}

// ParkingViolation は駐車違反を表す。
type ParkingViolation struct {
	ID            int64   `json:"id"`
	SummonsNumber string  `json:"summonsNumber"`
	Plate         string  `json:"plate"`
	State         string  `json:"state"`
	IssueDate     *string `json:"issueDate"`
	ViolationCode string  `json:"violationCode"`
	Description   string  `json:"description"`
	FineAmount    float64 `json:"fineAmount"`
	PenaltyAmount float64 `json:"penaltyAmount"`
	AmountDue     float64 `json:"amountDue"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"paymentStatus"`
	CompanyID     int64   `json:"companyId"`
	OwnerID       *int64  `json:"ownerId"`
}

// Toll は通行料（EZ-Pass以外を含む）を表す。
type Toll struct {
	ID              int64   `json:"id"`
	Plate           string  `json:"plate"`
	Agency          string  `json:"agency"`
	Plaza           string  `json:"plaza"`
	TransactionDate *string `json:"transactionDate"`
	Amount          float64 `json:"amount"`
	Status          string  `json:"status"`
	CompanyName     string  `json:"companyName"`
	OwnerID         *int64  `json:"ownerId"`
}

// PendingPayment は未払いの支払い項目を表す。
type PendingPayment struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Plate       string  `json:"plate"`
	Amount      float64 `json:"amount"`
	DueDate     *string `json:"dueDate"`
	Status      string  `json:"status"`
	CompanyID   int64   `json:"companyId"`
	OwnerID     *int64  `json:"ownerId"`
}

// Violation はプロバイダー側で管理される外部違反レコードを表す。
type Violation struct {
	ID            int64   `json:"id"`
	Type          string  `json:"type"`
	Plate         string  `json:"plate"`
	IssueDate     *string `json:"issueDate"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	PaymentStatus string  `json:"paymentStatus"`
	CompanyID     int64   `json:"companyId"`
}

// Invoice は外部日次請求書を表す。
type Invoice struct {
	ID            int64   `json:"id"`
	InvoiceNumber string  `json:"invoiceNumber"`
	InvoiceDate   *string `json:"invoiceDate"`
	CompanyID     int64   `json:"companyId"`
	CompanyName   string  `json:"companyName"`
	TotalAmount   float64 `json:"totalAmount"`
	Status        string  `json:"status"`
	SubmittedAt   *string `json:"submittedAt"`
	FailureReason *string `json:"failureReason"`
}

// Car はフリート車両を表す。
type Car struct {
	ID        int64  `json:"id"`
	Plate     string `json:"plate"`
	State     string `json:"state"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Year      int64  `json:"year"`
	VIN       string `json:"vin"`
	Status    string `json:"status"`
	CompanyID int64  `json:"companyId"`
}

// Company はフリートを所有する会社を表す。
type Company struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	OwnerID  *int64 `json:"ownerId"`
	IsActive bool   `json:"isActive"`
}

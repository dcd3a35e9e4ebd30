package normalize

import "github.com/hitoshi/rydora/internal/model"

// 各projectionはプロバイダー応答の1要素をフロントエンド向けのレコードへ射影する。
// プロバイダーのデプロイによってキー名が異なるため、候補キーを先頭から順に探す。
// 欠落したフィールドはnull/0/""になり、射影が失敗することはない。

// EzPassCharge はEZ-Pass請求を射影する。
func EzPassCharge(r Record) model.EzPassCharge {
	return model.EzPassCharge{
		ID:              r.Int("id", "Id", "chargeId"),
		PostingDate:     r.NullableString("postingDate", "PostingDate", "posting_date"),
		TransactionDate: r.NullableString("transactionDate", "TransactionDate", "transaction_date"),
		TagPlateNumber:  r.String("tagPlateNumber", "TagPlateNumber", "plateNumber", "plate"),
		Agency:          r.String("agency", "Agency"),
		Activity:        r.String("activity", "Activity"),
		EntryPlaza:      r.String("entryPlaza", "EntryPlaza", "entry_plaza"),
		EntryTime:       r.NullableString("entryTime", "EntryTime", "entry_time"),
		ExitPlaza:       r.String("exitPlaza", "ExitPlaza", "exit_plaza"),
		ExitTime:        r.NullableString("exitTime", "ExitTime", "exit_time"),
		Amount:          r.Float("amount", "Amount", "tollAmount"),
		CompanyID:       r.Int("companyId", "CompanyId", "company_id"),
		CompanyName:     r.String("companyName", "CompanyName", "company_name"),
		PaymentStatus:   r.String("paymentStatus", "PaymentStatus", "status"),
	}
}

// ParkingViolation は駐車違反を射影する。
func ParkingViolation(r Record) model.ParkingViolation {
	return model.ParkingViolation{
		ID:            r.Int("id", "Id"),
		SummonsNumber: r.String("summonsNumber", "SummonsNumber", "summons_number"),
		Plate:         r.String("plate", "Plate", "plateNumber"),
		State:         r.String("state", "State"),
		IssueDate:     r.NullableString("issueDate", "IssueDate", "issue_date"),
		ViolationCode: r.String("violationCode", "ViolationCode", "violation_code"),
		Description:   r.String("description", "Description", "violation"),
		FineAmount:    r.Float("fineAmount", "FineAmount", "fine_amount"),
		PenaltyAmount: r.Float("penaltyAmount", "PenaltyAmount", "penalty_amount"),
		AmountDue:     r.Float("amountDue", "AmountDue", "amount_due"),
		Status:        r.String("status", "Status"),
		PaymentStatus: r.String("paymentStatus", "PaymentStatus"),
		CompanyID:     r.Int("companyId", "CompanyId"),
		OwnerID:       r.NullableInt("ownerId", "OwnerId"),
	}
}

// Toll は通行料を射影する。
func Toll(r Record) model.Toll {
	return model.Toll{
		ID:              r.Int("id", "Id"),
		Plate:           r.String("plate", "Plate", "plateNumber", "tagPlateNumber"),
		Agency:          r.String("agency", "Agency"),
		Plaza:           r.String("plaza", "Plaza", "exitPlaza"),
		TransactionDate: r.NullableString("transactionDate", "TransactionDate"),
		Amount:          r.Float("amount", "Amount"),
		Status:          r.String("status", "Status", "paymentStatus"),
		CompanyName:     r.String("companyName", "CompanyName"),
		OwnerID:         r.NullableInt("ownerId", "OwnerId"),
	}
}

// PendingPayment は未払い項目を射影する。
func PendingPayment(r Record) model.PendingPayment {
	return model.PendingPayment{
		ID:          r.Int("id", "Id"),
		Type:        r.String("type", "Type", "paymentType"),
		Description: r.String("description", "Description"),
		Plate:       r.String("plate", "Plate", "plateNumber"),
		Amount:      r.Float("amount", "Amount", "amountDue"),
		DueDate:     r.NullableString("dueDate", "DueDate", "due_date"),
		Status:      r.String("status", "Status", "paymentStatus"),
		CompanyID:   r.Int("companyId", "CompanyId"),
		OwnerID:     r.NullableInt("ownerId", "OwnerId"),
	}
}

// Violation は外部違反レコードを射影する。
func Violation(r Record) model.Violation {
	return model.Violation{
		ID:            r.Int("id", "Id"),
		Type:          r.String("type", "Type", "violationType"),
		Plate:         r.String("plate", "Plate", "plateNumber"),
		IssueDate:     r.NullableString("issueDate", "IssueDate"),
		Description:   r.String("description", "Description"),
		Amount:        r.Float("amount", "Amount"),
		PaymentStatus: r.String("paymentStatus", "PaymentStatus"),
		CompanyID:     r.Int("companyId", "CompanyId"),
	}
}

// Invoice は外部日次請求書を射影する。
func Invoice(r Record) model.Invoice {
	return model.Invoice{
		ID:            r.Int("id", "Id"),
		InvoiceNumber: r.String("invoiceNumber", "InvoiceNumber", "number"),
		InvoiceDate:   r.NullableString("invoiceDate", "InvoiceDate", "date"),
		CompanyID:     r.Int("companyId", "CompanyId"),
		CompanyName:   r.String("companyName", "CompanyName"),
		TotalAmount:   r.Float("totalAmount", "TotalAmount", "amount"),
		Status:        r.String("status", "Status"),
		SubmittedAt:   r.NullableString("submittedAt", "SubmittedAt"),
		FailureReason: r.NullableString("failureReason", "FailureReason"),
	}
}

// Car は車両を射影する。
func Car(r Record) model.Car {
	return model.Car{
		ID:        r.Int("id", "Id"),
		Plate:     r.String("plate", "Plate", "plateNumber", "licensePlate"),
		State:     r.String("state", "State"),
		Make:      r.String("make", "Make"),
		Model:     r.String("model", "Model"),
		Year:      r.Int("year", "Year"),
		VIN:       r.String("vin", "Vin", "VIN"),
		Status:    r.String("status", "Status"),
		CompanyID: r.Int("companyId", "CompanyId"),
	}
}

// Company は会社を射影する。
func Company(r Record) model.Company {
	return model.Company{
		ID:       r.Int("id", "Id"),
		Name:     r.String("name", "Name", "companyName"),
		Email:    r.String("email", "Email"),
		Phone:    r.String("phone", "Phone", "phoneNumber"),
		Address:  r.String("address", "Address"),
		OwnerID:  r.NullableInt("ownerId", "OwnerId"),
		IsActive: r.Bool("isActive", "IsActive", "active"),
	}
}

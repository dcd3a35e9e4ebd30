package normalize

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hitoshi/rydora/internal/model"
)

func TestDecode_Kinds(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Kind
	}{
		{"empty", "", KindEmpty},
		{"null", "null", KindEmpty},
		{"result array", `{"reason":0,"result":[{"id":1}]}`, KindResultArray},
		{"empty result array", `{"result":[]}`, KindResultArray},
		{"bare array", `[{"id":1}]`, KindBareArray},
		{"json string", `"Invoice not found for date"`, KindString},
		{"plain text", `Invoice not found for date 2024-01-01`, KindString},
		{"object", `{"reason":0,"result":{"id":1}}`, KindObject},
		{"broken json", `{"result":[`, KindString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decode([]byte(tt.body)).Kind; got != tt.want {
				t.Errorf("Decode(%q).Kind = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestList_ResultArrayOfThree(t *testing.T) {
	body := []byte(`{"result":[{"id":1},{"id":2},{"id":3}]}`)

	got := List(body, 1, DefaultPageSize, EzPassCharge)

	page, ok := got.(Page)
	if !ok {
		t.Fatalf("expected Page, got %T", got)
	}
	if page.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", page.TotalCount)
	}
	if page.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1", page.TotalPages)
	}
	data := page.Data.([]model.EzPassCharge)
	if len(data) != 3 || data[2].ID != 3 {
		t.Errorf("data = %+v", data)
	}
}

func TestList_EmptyResultArray(t *testing.T) {
	got := List([]byte(`{"result":[]}`), 2, DefaultPageSize, Toll)

	page := got.(Page)
	if page.TotalPages != 0 || page.TotalCount != 0 {
		t.Errorf("page = %+v, want 0 count and 0 pages", page)
	}
	if page.Page != 2 {
		t.Errorf("Page = %d, want 2", page.Page)
	}

	b, _ := json.Marshal(page)
	if string(b) != `{"data":[],"totalCount":0,"page":2,"totalPages":0}` {
		t.Errorf("json = %s", b)
	}
}

func TestList_BareArrayPassedThrough(t *testing.T) {
	body := []byte(`[{"Id":7,"whatever":"x"}]`)

	got := List(body, 1, DefaultPageSize, Car)

	raw, ok := got.(json.RawMessage)
	if !ok {
		t.Fatalf("expected json.RawMessage, got %T", got)
	}
	if string(raw) != string(body) {
		t.Errorf("raw = %s, want unmodified body", raw)
	}
}

func TestList_ElevenRowsIsTwoPages(t *testing.T) {
	body := []byte(`{"result":[{},{},{},{},{},{},{},{},{},{},{}]}`)

	page := List(body, 0, DefaultPageSize, PendingPayment).(Page)

	if page.TotalCount != 11 || page.TotalPages != 2 {
		t.Errorf("page = %+v", page)
	}
	if page.Page != 1 {
		t.Errorf("Page = %d, want 1 for a non-positive page", page.Page)
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct{ count, size, want int }{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 0, 3},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.count, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.count, tt.size, got, tt.want)
		}
	}
}

func TestEmptyPage(t *testing.T) {
	b, _ := json.Marshal(EmptyPage(3))
	if string(b) != `{"data":[],"totalCount":0,"page":3,"totalPages":0}` {
		t.Errorf("json = %s", b)
	}
}

func TestProjection_MissingFieldsDefault(t *testing.T) {
	v := ParkingViolation(Record{})

	if v.ID != 0 || v.Plate != "" || v.IssueDate != nil || v.OwnerID != nil || v.FineAmount != 0 {
		t.Errorf("expected zero values, got %+v", v)
	}
}

func TestProjection_AlternateKeysAndTypes(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{
		"Id": "42",
		"PlateNumber": "ignored",
		"plateNumber": "ABC1234",
		"fine_amount": "$65.00",
		"ownerId": 9,
		"issue_date": "2024-03-01"
	}`), &r); err != nil {
		t.Fatal(err)
	}

	v := ParkingViolation(r)

	if v.ID != 42 {
		t.Errorf("ID = %d, want 42", v.ID)
	}
	if v.Plate != "ABC1234" {
		t.Errorf("Plate = %q", v.Plate)
	}
	if v.FineAmount != 65 {
		t.Errorf("FineAmount = %v", v.FineAmount)
	}
	if v.OwnerID == nil || *v.OwnerID != 9 {
		t.Errorf("OwnerID = %v", v.OwnerID)
	}
	if v.IssueDate == nil || *v.IssueDate != "2024-03-01" {
		t.Errorf("IssueDate = %v", v.IssueDate)
	}
}

func TestRecord_Bool(t *testing.T) {
	r := Record{"a": true, "b": float64(1), "c": "true", "d": "nope"}
	if !r.Bool("a") || !r.Bool("b") || !r.Bool("c") || r.Bool("d") || r.Bool("missing") {
		t.Errorf("unexpected Bool results for %v", r)
	}
}

func TestIsNotFoundForDate(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   bool
	}{
		{http.StatusNotFound, `"Invoice not found for date 2024-01-01"`, true},
		{http.StatusNotFound, `INVOICE NOT FOUND FOR DATE`, true},
		{http.StatusNotFound, `{"message":"Invoice not found"}`, false},
		{http.StatusBadRequest, `Invoice not found for date`, false},
	}
	for _, tt := range tests {
		if got := IsNotFoundForDate(tt.status, []byte(tt.body)); got != tt.want {
			t.Errorf("IsNotFoundForDate(%d, %q) = %v, want %v", tt.status, tt.body, got, tt.want)
		}
	}
}

func TestInvoiceWriteError(t *testing.T) {
	status, msg := InvoiceWriteError(http.StatusNotFound, []byte(`{"message":"INVOICE NOT FOUND: 12"}`))
	if status != http.StatusNotFound || msg != "Invoice not found." {
		t.Errorf("got (%d, %q)", status, msg)
	}
	if !IsInvoiceNotFound(msg) {
		t.Error("IsInvoiceNotFound should be true")
	}

	status, msg = InvoiceWriteError(http.StatusConflict, []byte(`{"message":"already submitted"}`))
	if status != http.StatusConflict || msg != "Bad Request" {
		t.Errorf("got (%d, %q), want upstream status and generic message", status, msg)
	}
}

func TestPassthrough(t *testing.T) {
	if got := Passthrough(nil); got != nil {
		t.Errorf("Passthrough(nil) = %v, want nil", got)
	}
	if got := Passthrough([]byte(`{"reason":0}`)); string(got.(json.RawMessage)) != `{"reason":0}` {
		t.Errorf("Passthrough(object) = %v", got)
	}
	if got := Passthrough([]byte(`ok`)); got != "ok" {
		t.Errorf("Passthrough(text) = %v", got)
	}
}

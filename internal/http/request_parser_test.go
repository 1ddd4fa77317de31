package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"dotproduct/internal/core"
)

func decode(t *testing.T, body string) Payload {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	p, err := DecodePayload(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return p
}

func validationField(err error) (string, bool) {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		return "", false
	}
	return verr.Field, true
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		wantLen int
	}{
		{"empty body", "", false, 0},
		{"whitespace body", "  \n", false, 0},
		{"object", `{"name":"Food","type":"expense"}`, false, 2},
		{"malformed", `{"name":`, true, 0},
		{"array", `[1,2]`, true, 0},
		{"null", `null`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			p, err := DecodePayload(httptest.NewRecorder(), req)
			if tt.wantErr {
				if _, ok := validationField(err); !ok {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(p) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(p), tt.wantLen)
			}
		})
	}
}

func TestDecodePayloadTooLarge(t *testing.T) {
	body := `{"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	_, err := DecodePayload(httptest.NewRecorder(), req)
	if status, _ := errorStatus(err); status != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413 (err=%v)", status, err)
	}
}

func TestCategoryInputFromPayload(t *testing.T) {
	in, err := decode(t, `{"name":"Food","type":"expense","id":99,"user":7}`).CategoryInput()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *in.Name != "Food" || *in.Kind != core.KindExpense {
		t.Errorf("unexpected input %+v", in)
	}

	_, err = decode(t, `{"name":"Food","created_at":"2025-01-01T00:00:00Z"}`).CategoryInput()
	if field, ok := validationField(err); !ok || field != "created_at" {
		t.Errorf("expected created_at rejection, got %v", err)
	}

	_, err = decode(t, `{"name":null}`).CategoryInput()
	if field, ok := validationField(err); !ok || field != "name" {
		t.Errorf("expected name null rejection, got %v", err)
	}

	_, err = decode(t, `{"name":12}`).CategoryInput()
	if field, ok := validationField(err); !ok || field != "name" {
		t.Errorf("expected name type rejection, got %v", err)
	}
}

func TestTransactionInputFromPayload(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		check     func(t *testing.T, in core.TransactionInput)
	}{
		{
			name: "full payload",
			body: `{"category":3,"amount":"12.50","description":"Lunch","date":"2025-03-09","type":"expense"}`,
			check: func(t *testing.T, in core.TransactionInput) {
				if in.Category == nil || !in.Category.Valid || in.Category.ID != 3 {
					t.Errorf("category = %+v", in.Category)
				}
				if in.Amount.Cents != 1250 {
					t.Errorf("amount = %d", in.Amount.Cents)
				}
				if in.Date.String() != "2025-03-09" {
					t.Errorf("date = %s", in.Date)
				}
			},
		},
		{
			name: "numeric string category",
			body: `{"category":"4"}`,
			check: func(t *testing.T, in core.TransactionInput) {
				if in.Category == nil || in.Category.ID != 4 {
					t.Errorf("category = %+v", in.Category)
				}
			},
		},
		{
			name: "null category clears",
			body: `{"category":null}`,
			check: func(t *testing.T, in core.TransactionInput) {
				if in.Category == nil || in.Category.Valid {
					t.Errorf("category = %+v", in.Category)
				}
			},
		},
		{
			name: "absent fields stay nil",
			body: `{}`,
			check: func(t *testing.T, in core.TransactionInput) {
				if in.Category != nil || in.Amount != nil || in.Date != nil || in.Kind != nil || in.Description != nil {
					t.Errorf("expected empty input, got %+v", in)
				}
			},
		},
		{name: "bad category", body: `{"category":"abc"}`, wantField: "category"},
		{name: "bad amount precision", body: `{"amount":1.234}`, wantField: "amount"},
		{name: "null amount", body: `{"amount":null}`, wantField: "amount"},
		{name: "bad date", body: `{"date":"09/03/2025"}`, wantField: "date"},
		{name: "created_at read-only", body: `{"created_at":"2025-01-01"}`, wantField: "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := decode(t, tt.body).TransactionInput()
			if tt.wantField != "" {
				if field, ok := validationField(err); !ok || field != tt.wantField {
					t.Fatalf("expected %s error, got %v", tt.wantField, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, in)
		})
	}
}

func TestBudgetInputFromPayload(t *testing.T) {
	in, err := decode(t, `{"category":2,"amount":200,"period":"weekly"}`).BudgetInput()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *in.Category != 2 || in.Amount.Cents != 20000 || *in.Period != core.PeriodWeekly {
		t.Errorf("unexpected input %+v", in)
	}

	_, err = decode(t, `{"category":2,"amount":200,"start_date":"2025-01-01"}`).BudgetInput()
	if field, ok := validationField(err); !ok || field != "start_date" {
		t.Errorf("expected start_date rejection, got %v", err)
	}

	_, err = decode(t, `{"category":null}`).BudgetInput()
	if field, ok := validationField(err); !ok || field != "category" {
		t.Errorf("expected category null rejection, got %v", err)
	}
}

func TestParseTransactionFilter(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantErr   string
		wantKind  bool
		wantCat   bool
		wantStart bool
		wantEnd   bool
	}{
		{name: "no filters", query: ""},
		{name: "all filters", query: "type=income&category=5&start_date=2025-01-01&end_date=2025-01-31",
			wantKind: true, wantCat: true, wantStart: true, wantEnd: true},
		{name: "bad type ignored", query: "type=transfer"},
		{name: "bad category ignored", query: "category=food"},
		{name: "bad start date rejected", query: "start_date=yesterday", wantErr: "start_date"},
		{name: "bad end date rejected", query: "end_date=2025-02-30", wantErr: "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			f, err := ParseTransactionFilter(q)
			if tt.wantErr != "" {
				if field, ok := validationField(err); !ok || field != tt.wantErr {
					t.Fatalf("expected %s error, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (f.Kind != nil) != tt.wantKind || (f.CategoryID != nil) != tt.wantCat ||
				(f.StartDate != nil) != tt.wantStart || (f.EndDate != nil) != tt.wantEnd {
				t.Errorf("unexpected filter %+v", f)
			}
		})
	}
}

func TestParseCategoryFilter(t *testing.T) {
	if f := ParseCategoryFilter(url.Values{"type": {"income"}}); f.Kind == nil || *f.Kind != core.KindIncome {
		t.Errorf("expected income filter, got %+v", f)
	}
	if f := ParseCategoryFilter(url.Values{"type": {"bogus"}}); f.Kind != nil {
		t.Errorf("expected bogus type ignored, got %+v", f)
	}
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bagatelle/backend/internal/cashback"
	"bagatelle/backend/internal/domain"
	"bagatelle/backend/internal/repurchase"
	"bagatelle/backend/internal/service"
	"bagatelle/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cashback.NewEngine(), repurchase.NewEngine(nil, time.Minute))
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access token in login response")
	}
	return resp.AccessToken
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func createTestCustomer(t *testing.T, handler http.Handler, token, taxID string) domain.Customer {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", token, domain.CustomerCreateRequest{
		TaxID:    taxID,
		FullName: "Helena Prado",
		Phone:    "+55 11 98888-0000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer failed: %d %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Customer domain.Customer `json:"customer"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode customer: %v", err)
	}
	return body.Customer
}

func createTestProduct(t *testing.T, handler http.Handler, token, price string) domain.Product {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, map[string]string{
		"name":   "Eau de Test",
		"brand":  "Maison Unit",
		"volume": "100ml",
		"price":  price,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product failed: %d %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	return body.Product
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: "admin",
		Password: "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCustomersRequireAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/customers", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCustomerLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "admin", "admin123")

	customer := createTestCustomer(t, handler, token, "12345678901")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/customers/"+customer.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get customer failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers?tax_id=12345678901", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup by tax id failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/customers/"+customer.ID, token, map[string]string{
		"phone": "+55 11 97777-1111",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch customer failed: %d %s", rec.Code, rec.Body.String())
	}

	var patched struct {
		Customer domain.Customer `json:"customer"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&patched); err != nil {
		t.Fatalf("decode patched customer: %v", err)
	}
	if patched.Customer.Phone != "+55 11 97777-1111" {
		t.Fatalf("expected updated phone, got %q", patched.Customer.Phone)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/"+customer.ID+"/balance", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance failed: %d %s", rec.Code, rec.Body.String())
	}

	var balance domain.BalanceResponse
	if err := json.NewDecoder(rec.Body).Decode(&balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Available.String() != "0.00" {
		t.Fatalf("expected zero balance for new customer, got %s", balance.Available)
	}
}

func TestDuplicateTaxIDReturns409(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "admin", "admin123")

	createTestCustomer(t, handler, token, "12345678901")
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", token, domain.CustomerCreateRequest{
		TaxID:    "12345678901",
		FullName: "Duplicate Person",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate tax id, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRegisterSaleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := loginAs(t, handler, "admin", "admin123")
	attendant := loginAs(t, handler, "attendant", "attendant123")

	customer := createTestCustomer(t, handler, admin, "12345678901")
	product := createTestProduct(t, handler, admin, "25.00")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", attendant, map[string]any{
		"customer_id": customer.ID,
		"lines": []map[string]any{
			{"product_id": product.ID, "quantity": 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register sale failed: %d %s", rec.Code, rec.Body.String())
	}

	var created struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if created.Sale.Total.String() != "50.00" {
		t.Fatalf("expected total 50.00, got %s", created.Sale.Total)
	}

	// 5% of 50.00 accrues right away.
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/"+customer.ID+"/balance", attendant, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance failed: %d %s", rec.Code, rec.Body.String())
	}
	var balance domain.BalanceResponse
	if err := json.NewDecoder(rec.Body).Decode(&balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Available.String() != "2.50" {
		t.Fatalf("expected balance 2.50, got %s", balance.Available)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/"+customer.ID+"/ledger", attendant, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ledger failed: %d %s", rec.Code, rec.Body.String())
	}
	var ledger struct {
		Entries []domain.CashbackEntry `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&ledger); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if len(ledger.Entries) != 1 || ledger.Entries[0].Amount.String() != "2.50" {
		t.Fatalf("expected one 2.50 ledger entry, got %+v", ledger.Entries)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+created.Sale.ID, attendant, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get sale failed: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterSaleWithCashbackOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := loginAs(t, handler, "admin", "admin123")

	customer := createTestCustomer(t, handler, admin, "12345678901")
	product := createTestProduct(t, handler, admin, "40.00")

	// First sale builds up a balance of 2.00.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", admin, map[string]any{
		"customer_id": customer.ID,
		"lines":       []map[string]any{{"product_id": product.ID, "quantity": 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("first sale failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", admin, map[string]any{
		"customer_id": customer.ID,
		"lines":       []map[string]any{{"product_id": product.ID, "quantity": 1}},
		"cashback":    "2.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("second sale failed: %d %s", rec.Code, rec.Body.String())
	}

	var created struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if created.Sale.Total.String() != "38.00" {
		t.Fatalf("expected total 38.00 after redemption, got %s", created.Sale.Total)
	}
	if created.Sale.CashbackUsed.String() != "2.00" {
		t.Fatalf("expected cashback_used 2.00, got %s", created.Sale.CashbackUsed)
	}
}

func TestRegisterSaleInsufficientCashbackReturns409(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := loginAs(t, handler, "admin", "admin123")

	customer := createTestCustomer(t, handler, admin, "12345678901")
	product := createTestProduct(t, handler, admin, "40.00")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", admin, map[string]any{
		"customer_id": customer.ID,
		"lines":       []map[string]any{{"product_id": product.ID, "quantity": 1}},
		"cashback":    "10.00",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient cashback, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRegisterSaleUnknownCustomerReturns404(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := loginAs(t, handler, "admin", "admin123")
	product := createTestProduct(t, handler, admin, "40.00")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", admin, map[string]any{
		"customer_id": "cus-nope",
		"lines":       []map[string]any{{"product_id": product.ID, "quantity": 1}},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown customer, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestAttendantCannotMutateCatalog(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := loginAs(t, handler, "admin", "admin123")
	attendant := loginAs(t, handler, "attendant", "attendant123")

	product := createTestProduct(t, handler, admin, "30.00")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", attendant, map[string]string{
		"name": "Contraband", "brand": "X", "volume": "50ml", "price": "10.00",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for attendant product create, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/products/"+product.ID, attendant, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for attendant product delete, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/products/"+product.ID, admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected admin delete to succeed, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestDashboardEndpoints(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "attendant", "attendant123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/expiring-cashback", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expiring-cashback failed: %d %s", rec.Code, rec.Body.String())
	}
	var expiring domain.ExpiringCashbackResponse
	if err := json.NewDecoder(rec.Body).Decode(&expiring); err != nil {
		t.Fatalf("decode expiring: %v", err)
	}
	if expiring.GeneratedAt == "" {
		t.Fatalf("expected generated_at to be set")
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/repurchase-suggestions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("repurchase-suggestions failed: %d %s", rec.Code, rec.Body.String())
	}
	var feed domain.RepurchaseFeed
	if err := json.NewDecoder(rec.Body).Decode(&feed); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if feed.GeneratedAt == "" {
		t.Fatalf("expected generated_at to be set")
	}
}

func TestSeededCatalogIsListed(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "attendant", "attendant123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list products failed: %d %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(body.Products) == 0 {
		t.Fatalf("expected seeded products, got none")
	}
	for i := 1; i < len(body.Products); i++ {
		if body.Products[i-1].Name > body.Products[i].Name {
			t.Fatalf("expected products sorted by name, got %s before %s", body.Products[i-1].Name, body.Products[i].Name)
		}
	}
}

func TestUnknownCustomerActionReturns404(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "admin", "admin123")
	customer := createTestCustomer(t, handler, token, "12345678901")

	path := fmt.Sprintf("/api/v1/customers/%s/teleport", customer.ID)
	rec := doJSON(t, handler, http.MethodGet, path, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", rec.Code)
	}
}

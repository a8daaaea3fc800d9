package httpapi

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/photos"
	"storeledger/backend/internal/service"
	"storeledger/backend/internal/session"
	"storeledger/backend/internal/store"
	"storeledger/backend/internal/store/memory"
)

const testManagerPIN = "482913"

// newTestAPI builds a full API on a seeded in-memory store, a real AuthManager
// and real services so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo, err := memory.NewSeeded(store.DefaultSeedPassword, store.DefaultSeedPassword)
	if err != nil {
		t.Fatalf("seed memory store: %v", err)
	}
	photoStore, err := photos.New(filepath.Join(t.TempDir(), "product_photos"))
	if err != nil {
		t.Fatalf("photo store: %v", err)
	}
	svc := service.New(repo)
	auth := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour, testManagerPIN, svc.Users, session.NewMemoryRegistry())

	return New(svc, auth, photoStore, Options{AllowedOrigin: "*", LowStockThreshold: 5})
}

type testClient struct {
	t     *testing.T
	api   *API
	token string
	csrf  string
}

func newTestClient(t *testing.T, api *API) *testClient {
	t.Helper()
	return &testClient{t: t, api: api, token: loginAs(t, api, "user", store.DefaultSeedPassword), csrf: fetchCSRFToken(t, api)}
}

func (c *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-CSRF-Token", c.csrf)
	res := httptest.NewRecorder()
	c.api.Handler().ServeHTTP(res, req)
	return res
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, res *httptest.ResponseRecorder, want int) {
	t.Helper()
	if res.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, res.Code, res.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusOK)
	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin(t *testing.T) {
	api := newTestAPI(t)

	body, _ := json.Marshal(domain.LoginRequest{Username: "test", Password: store.DefaultSeedPassword})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	expectStatus(t, res, http.StatusOK)
	resp := decodeBody[domain.LoginResponse](t, res)
	if resp.Role != domain.RoleUser || resp.Username != "test" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	body, _ = json.Marshal(domain.LoginRequest{Username: "test", Password: "wrong"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res = httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	expectStatus(t, res, http.StatusUnauthorized)
}

func TestProductsRequireSession(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	expectStatus(t, res, http.StatusUnauthorized)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	res = httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	expectStatus(t, res, http.StatusUnauthorized)
}

func TestSessionQueryParameter(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "test", store.DefaultSeedPassword)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?session="+token, nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	expectStatus(t, res, http.StatusOK)
	body := decodeBody[map[string][]domain.ProductView](t, res)
	if len(body["products"]) != 10 {
		t.Fatalf("expected 10 seeded products, got %d", len(body["products"]))
	}
	if body["products"][0].ProductID != "p001" {
		t.Fatalf("expected products ordered by id, got %s first", body["products"][0].ProductID)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	api := newTestAPI(t)
	client := newTestClient(t, api)

	expectStatus(t, client.do(http.MethodGet, "/api/v1/auth/me", nil), http.StatusOK)
	expectStatus(t, client.do(http.MethodPost, "/api/v1/auth/logout", nil), http.StatusNoContent)
	expectStatus(t, client.do(http.MethodGet, "/api/v1/auth/me", nil), http.StatusUnauthorized)
}

func TestMeReturnsProfile(t *testing.T) {
	api := newTestAPI(t)
	client := newTestClient(t, api)

	res := client.do(http.MethodGet, "/api/v1/auth/me", nil)
	expectStatus(t, res, http.StatusOK)
	body := decodeBody[map[string]domain.UserProfile](t, res)
	user := body["user"]
	if user.Role != domain.RoleAdmin || user.StaffName == nil || *user.StaffName != "Zhang San" {
		t.Fatalf("unexpected profile: %+v", user)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	api := newTestAPI(t)
	client := &testClient{t: t, api: api, csrf: fetchCSRFToken(t, api)}

	res := client.do(http.MethodPost, "/api/v1/auth/register", domain.RegisterRequest{Username: "wang", Password: "wangwu1", StaffID: "staff003"})
	expectStatus(t, res, http.StatusCreated)

	res = client.do(http.MethodPost, "/api/v1/auth/register", domain.RegisterRequest{Username: "wang", Password: "wangwu1", StaffID: "staff003"})
	expectStatus(t, res, http.StatusConflict)

	res = client.do(http.MethodPost, "/api/v1/auth/register", domain.RegisterRequest{Username: "ghost", Password: "ghost12", StaffID: "staff999"})
	expectStatus(t, res, http.StatusNotFound)

	token := loginAs(t, api, "wang", "wangwu1")
	if token == "" {
		t.Fatalf("expected token for registered user")
	}
}

func TestProductLifecycle(t *testing.T) {
	api := newTestAPI(t)
	client := newTestClient(t, api)

	create := domain.ProductCreateRequest{
		ProductID: "p100",
		Name:      "Green Tea",
		Quantity:  12,
		Category:  "Drinks",
		StaffID:   "staff001",
	}
	create.Price = mustDecimal(t, "6.50")

	res := client.do(http.MethodPost, "/api/v1/products", create)
	expectStatus(t, res, http.StatusCreated)

	expectStatus(t, client.do(http.MethodPost, "/api/v1/products", create), http.StatusConflict)

	bad := create
	bad.ProductID = "p101"
	bad.Price = mustDecimal(t, "0")
	expectStatus(t, client.do(http.MethodPost, "/api/v1/products", bad), http.StatusBadRequest)

	res = client.do(http.MethodGet, "/api/v1/products/p100", nil)
	expectStatus(t, res, http.StatusOK)
	got := decodeBody[map[string]domain.ProductView](t, res)["product"]
	if got.StaffName == nil || *got.StaffName != "Zhang San" {
		t.Fatalf("expected staff name on product view, got %+v", got)
	}

	update := domain.ProductUpdateRequest{Name: "Jasmine Tea", Quantity: 20, Category: "Drinks", StaffID: "staff003"}
	update.Price = mustDecimal(t, "7.00")
	res = client.do(http.MethodPut, "/api/v1/products/p100", update)
	expectStatus(t, res, http.StatusOK)
	updated := decodeBody[map[string]domain.Product](t, res)["product"]
	if updated.Name != "Jasmine Tea" || updated.Quantity != 20 {
		t.Fatalf("unexpected updated product: %+v", updated)
	}

	res = client.do(http.MethodPost, "/api/v1/products/p100/adjust", domain.QuantityAdjustRequest{Delta: -21})
	expectStatus(t, res, http.StatusConflict)
	res = client.do(http.MethodPost, "/api/v1/products/p100/adjust", domain.QuantityAdjustRequest{Delta: -20})
	expectStatus(t, res, http.StatusOK)

	expectStatus(t, client.do(http.MethodGet, "/api/v1/products/p404", nil), http.StatusNotFound)
}

func TestLowStockUsesThreshold(t *testing.T) {
	api := newTestAPI(t)
	client := newTestClient(t, api)

	res := client.do(http.MethodGet, "/api/v1/products/low-stock", nil)
	expectStatus(t, res, http.StatusOK)
	var body struct {
		Threshold int                  `json:"threshold"`
		Products  []domain.ProductView `json:"products"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Threshold != 5 || len(body.Products) != 0 {
		t.Fatalf("expected no seeded product at or below 5, got %+v", body)
	}

	res = client.do(http.MethodGet, "/api/v1/products/low-stock?threshold=40", nil)
	expectStatus(t, res, http.StatusOK)
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Products) != 2 || body.Products[0].ProductID != "p003" || body.Products[1].ProductID != "p009" {
		t.Fatalf("expected p003 and p009 at or below 40, got %+v", body.Products)
	}

	expectStatus(t, client.do(http.MethodGet, "/api/v1/products/low-stock?threshold=-1", nil), http.StatusBadRequest)
}

func TestDeleteProductRequiresManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	client := newTestClient(t, api)

	expectStatus(t, client.do(http.MethodDelete, "/api/v1/products/p010", nil), http.StatusForbidden)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/p010", nil)
	req.Header.Set("Authorization", "Bearer "+client.token)
	req.Header.Set("X-CSRF-Token", client.csrf)
	req.Header.Set("X-Manager-PIN", testManagerPIN)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	expectStatus(t, res, http.StatusNoContent)

	expectStatus(t, client.do(http.MethodGet, "/api/v1/products/p010", nil), http.StatusNotFound)
}

func TestRecordSaleAndOversell(t *testing.T) {
	api := newTestAPI(t)
	client := newTestClient(t, api)

	res := client.do(http.MethodPost, "/api/v1/sales", domain.SaleRequest{ProductID: "p003", Quantity: 2})
	expectStatus(t, res, http.StatusCreated)
	sale := decodeBody[map[string]domain.Sale](t, res)["sale"]
	if sale.ProductName != "Beef" || sale.TotalPrice.StringFixed(2) != "77.20" {
		t.Fatalf("unexpected sale: %+v", sale)
	}

	expectStatus(t, client.do(http.MethodPost, "/api/v1/sales", domain.SaleRequest{ProductID: "p003", Quantity: 29}), http.StatusConflict)
	expectStatus(t, client.do(http.MethodPost, "/api/v1/sales", domain.SaleRequest{ProductID: "p003", Quantity: 0}), http.StatusBadRequest)
	expectStatus(t, client.do(http.MethodPost, "/api/v1/sales", domain.SaleRequest{ProductID: "nope", Quantity: 1}), http.StatusNotFound)

	res = client.do(http.MethodGet, "/api/v1/products/p003", nil)
	expectStatus(t, res, http.StatusOK)
	if q := decodeBody[map[string]domain.ProductView](t, res)["product"].Quantity; q != 28 {
		t.Fatalf("expected quantity 28 after sale, got %d", q)
	}

	res = client.do(http.MethodGet, "/api/v1/sales", nil)
	expectStatus(t, res, http.StatusOK)
	if sales := decodeBody[map[string][]domain.Sale](t, res)["sales"]; len(sales) != 1 {
		t.Fatalf("expected one sale, got %d", len(sales))
	}
}

func TestInventoryOperationsReportStockAfter(t *testing.T) {
	api := newTestAPI(t)
	client := newTestClient(t, api)

	res := client.do(http.MethodPost, "/api/v1/inventory/operations", domain.OperationRequest{
		ProductID: "p005", OperationType: "in", Quantity: 10, Notes: "morning delivery",
	})
	expectStatus(t, res, http.StatusCreated)
	op := decodeBody[map[string]domain.InventoryOperation](t, res)["operation"]
	if op.StaffID != "staff001" {
		t.Fatalf("expected staff of the logged in user, got %q", op.StaffID)
	}

	expectStatus(t, client.do(http.MethodPost, "/api/v1/inventory/operations", domain.OperationRequest{
		ProductID: "p005", OperationType: "out", Quantity: 71, StaffID: "staff003",
	}), http.StatusConflict)
	expectStatus(t, client.do(http.MethodPost, "/api/v1/inventory/operations", domain.OperationRequest{
		ProductID: "p005", OperationType: "move", Quantity: 1, StaffID: "staff003",
	}), http.StatusBadRequest)
	expectStatus(t, client.do(http.MethodPost, "/api/v1/inventory/operations", domain.OperationRequest{
		ProductID: "p005", OperationType: "out", Quantity: 5, StaffID: "staff003",
	}), http.StatusCreated)

	res = client.do(http.MethodGet, "/api/v1/inventory/operations", nil)
	expectStatus(t, res, http.StatusOK)
	entries := decodeBody[map[string][]domain.OperationEntry](t, res)["operations"]
	if len(entries) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(entries))
	}
	if entries[0].OperationType != domain.OperationOut || entries[0].StockAfter != 65 {
		t.Fatalf("expected newest out operation with stock 65, got %+v", entries[0])
	}
	if entries[1].StockAfter != 70 {
		t.Fatalf("expected in operation stock 70, got %d", entries[1].StockAfter)
	}
	if entries[0].StaffName == nil || *entries[0].StaffName != "Wang Wu" {
		t.Fatalf("expected staff name on entry, got %+v", entries[0].StaffName)
	}
}

func TestStaffListing(t *testing.T) {
	api := newTestAPI(t)
	client := newTestClient(t, api)

	res := client.do(http.MethodGet, "/api/v1/staff", nil)
	expectStatus(t, res, http.StatusOK)
	staff := decodeBody[map[string][]domain.Staff](t, res)["staff"]
	if len(staff) != 4 || staff[0].StaffID != "staff001" {
		t.Fatalf("unexpected staff list: %+v", staff)
	}
}

func TestSalesReportFormats(t *testing.T) {
	api := newTestAPI(t)
	client := newTestClient(t, api)

	expectStatus(t, client.do(http.MethodGet, "/api/v1/reports/sales", nil), http.StatusNotFound)
	expectStatus(t, client.do(http.MethodGet, "/api/v1/reports/sales?format=csv", nil), http.StatusNotFound)

	expectStatus(t, client.do(http.MethodPost, "/api/v1/sales", domain.SaleRequest{ProductID: "p001", Quantity: 4}), http.StatusCreated)

	res := client.do(http.MethodGet, "/api/v1/reports/sales", nil)
	expectStatus(t, res, http.StatusOK)
	report := decodeBody[domain.SalesReport](t, res)
	if report.SaleCount != 1 || report.TotalRevenue.StringFixed(2) != "10.00" {
		t.Fatalf("unexpected report: %+v", report)
	}

	res = client.do(http.MethodGet, "/api/v1/reports/sales?format=csv", nil)
	expectStatus(t, res, http.StatusOK)
	if ct := res.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	if cd := res.Header().Get("Content-Disposition"); !strings.Contains(cd, "sales_report_") {
		t.Fatalf("expected sales_report file name, got %q", cd)
	}
	rows, err := csv.NewReader(res.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 || rows[1][2] != "Potato" || rows[1][5] != "10.00" {
		t.Fatalf("unexpected csv rows: %v", rows)
	}

	res = client.do(http.MethodGet, "/api/v1/reports/sales?format=html", nil)
	expectStatus(t, res, http.StatusOK)
	if !strings.Contains(res.Body.String(), "<td>Potato</td>") {
		t.Fatalf("expected product row in html report")
	}
}

func TestInventoryReportCSV(t *testing.T) {
	api := newTestAPI(t)
	client := newTestClient(t, api)

	res := client.do(http.MethodGet, "/api/v1/reports/inventory?format=csv", nil)
	expectStatus(t, res, http.StatusOK)
	rows, err := csv.NewReader(res.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 11 {
		t.Fatalf("expected header plus 10 products, got %d rows", len(rows))
	}
	if rows[0][7] != "stock_value" || rows[3][0] != "p003" || rows[3][7] != "1158.00" {
		t.Fatalf("unexpected inventory csv: %v", rows[:4])
	}

	res = client.do(http.MethodGet, "/api/v1/reports/inventory", nil)
	expectStatus(t, res, http.StatusOK)
	report := decodeBody[domain.InventoryReport](t, res)
	if report.ProductCount != 10 || report.TotalUnits != 715 {
		t.Fatalf("unexpected inventory report: %+v", report)
	}
}

func TestPhotoUploadAndServe(t *testing.T) {
	api := newTestAPI(t)
	client := newTestClient(t, api)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("photo", "potato.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("png-bytes"))
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/p001/photo", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+client.token)
	req.Header.Set("X-CSRF-Token", client.csrf)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	expectStatus(t, res, http.StatusOK)

	product := decodeBody[map[string]domain.Product](t, res)["product"]
	if filepath.Base(product.PhotoPath) != "p001_potato.png" || product.Quantity != 100 {
		t.Fatalf("unexpected product after upload: %+v", product)
	}

	req = httptest.NewRequest(http.MethodGet, "/photos/p001_potato.png?session="+client.token, nil)
	res = httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	expectStatus(t, res, http.StatusOK)
	if res.Body.String() != "png-bytes" {
		t.Fatalf("unexpected photo body %q", res.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	api.Handler().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	expectStatus(t, res, http.StatusOK)
	if !strings.Contains(res.Body.String(), "storeledger_http_requests_total") {
		t.Fatalf("expected http request counter in metrics output")
	}
}

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/pkg/auth"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type recordedCall struct {
	method, route string
	status        int
	err           error
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (o *recordingObserver) ObserveAPICall(method, route string, status int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, recordedCall{method, route, status, err})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const userJSON = `{"id":7,"username":"ana","email":"ana@example.com","user_type":"user","is_active":true}`

func TestLoginSendsCredentialsAndHeaders(t *testing.T) {
	var gotAuth, gotReqID string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get(RequestIDHeader)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"message":"Login successful","user":`+userJSON+`,"access_token":"tok-2"}`)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := New(srv.URL, WithTokenSource(staticToken("tok-1")), WithObserver(obs))
	res, err := c.Login(context.Background(), Credentials{Username: "ana", Password: "pw", RoleHint: auth.RoleBasicUser})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.User.Username != "ana" || res.User.Role != auth.RoleBasicUser || res.AccessToken != "tok-2" {
		t.Errorf("Login() = %+v", res)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReqID == "" {
		t.Error("missing request id header")
	}
	if gotBody["user_type"] != "user" || gotBody["username"] != "ana" {
		t.Errorf("body = %v", gotBody)
	}
	if len(obs.calls) != 1 || obs.calls[0].route != "/api/login" || obs.calls[0].status != 200 {
		t.Errorf("observer calls = %+v", obs.calls)
	}
}

func TestLoginOmitsGuestRoleHint(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		io.WriteString(w, `{"message":"ok","user":`+userJSON+`,"access_token":"t"}`)
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Login(context.Background(), Credentials{Username: "ana", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["user_type"]; ok {
		t.Errorf("user_type sent for guest hint: %v", raw)
	}
}

func TestAPIErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message wins", 401, `{"error":"Invalid credentials","message":"Username or password is incorrect"}`, "Username or password is incorrect"},
		{"error fallback", 404, `{"error":"Product not found"}`, "Product not found"},
		{"default", 500, `<html>oops</html>`, "Request failed"},
		{"empty object", 400, `{}`, "Request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL).GetProduct(context.Background(), 3)
			if !errors.HasCategory(err, errors.CategoryAPI) {
				t.Fatalf("error = %v, want api error", err)
			}
			if got := errors.UserMessage(err); got != tt.want {
				t.Errorf("UserMessage = %q, want %q", got, tt.want)
			}
			if errors.StatusOf(err) != tt.status {
				t.Errorf("StatusOf = %d, want %d", errors.StatusOf(err), tt.status)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, WithTimeout(time.Second)).GetSession(context.Background())
	if !errors.HasCategory(err, errors.CategoryTransport) {
		t.Fatalf("error = %v, want transport error", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"user":`},
		{"unknown role", `{"user":{"id":1,"username":"x","user_type":"wizard"}}`},
		{"missing user", `{}`},
		{"bad id", `{"user":{"id":0,"username":"x","user_type":"user"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL).GetProfile(context.Background())
			if !errors.HasCategory(err, errors.CategoryDecode) {
				t.Errorf("error = %v, want decode error", err)
			}
		})
	}
}

func TestSessionActive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"logged_in":true,"user_id":null,"username":null,"user_type":null}`)
	}))
	defer srv.Close()

	info, err := New(srv.URL).GetSession(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Active() {
		t.Error("session without user_id should not be active")
	}
}

func TestRegisterJSON(t *testing.T) {
	var ct string
	var body registerBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message":"User registered successfully","user":`+userJSON+`,"access_token":"t"}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL).Register(context.Background(), Registration{
		Username: "ana", Email: "ana@example.com", Password: "pw", Role: auth.RoleBasicUser,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if res.PendingApproval() || res.Auth == nil || res.Auth.AccessToken != "t" {
		t.Errorf("Register() = %+v", res)
	}
	if !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if body.UserType != "user" {
		t.Errorf("user_type = %q", body.UserType)
	}
}

func TestRegisterFarmerMultipart(t *testing.T) {
	var form map[string]string
	var certName, certBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		f, hdr, err := r.FormFile("certification")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		certName, certBody = hdr.Filename, string(b)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"success":true,"message":"Farmer application submitted successfully. Please wait for admin approval.",
			"application":{"id":3,"username":"bo","email":"bo@example.com","farm_name":"Green Acres","location":"Kumasi","status":"pending"}}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL).Register(context.Background(), Registration{
		Username: "bo", Email: "bo@example.com", Password: "pw", Role: auth.RoleProducer,
		FarmName: "Green Acres", Location: "Kumasi",
		Certification: &Attachment{Name: "cert.pdf", Reader: strings.NewReader("%PDF-1.4")},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !res.PendingApproval() || res.Application.Application.Status != ApplicationPending {
		t.Errorf("Register() = %+v", res)
	}
	if form["user_type"] != "farmer" || form["farm_name"] != "Green Acres" {
		t.Errorf("form = %v", form)
	}
	if _, ok := form["phone"]; ok {
		t.Error("empty optional field should not be sent")
	}
	if certName != "cert.pdf" || certBody != "%PDF-1.4" {
		t.Errorf("certification = %q %q", certName, certBody)
	}
}

func TestRegisterRejectsUnregisterableRoles(t *testing.T) {
	for _, role := range []auth.Role{auth.RoleAdministrator, auth.RoleGuest} {
		_, err := New("http://unused.invalid").Register(context.Background(), Registration{
			Username: "x", Email: "x@example.com", Password: "pw", Role: role,
		})
		if !errors.HasCategory(err, errors.CategoryValidation) {
			t.Errorf("%s: error = %v, want validation error", role, err)
		}
	}
}

func TestApplyAsFarmer(t *testing.T) {
	var body map[string]string
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"success":true,"message":"Application submitted",
			"application":{"id":5,"username":"kofi","email":"kofi@example.com","farm_name":"Kofi Farms","location":"Tamale","status":"pending"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	app, err := c.ApplyAsFarmer(context.Background(), FarmerApplication{
		Username: "kofi", Email: "kofi@example.com", Password: "pw",
		FarmName: "Kofi Farms", Location: "Tamale",
	})
	if err != nil {
		t.Fatalf("ApplyAsFarmer() error = %v", err)
	}
	if method != http.MethodPost || path != "/api/farmers/apply" {
		t.Errorf("request = %s %s", method, path)
	}
	if body["farm_name"] != "Kofi Farms" || body["location"] != "Tamale" || body["password"] != "pw" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["phone"]; ok {
		t.Error("empty phone should be omitted")
	}
	if app.ID != 5 || app.Status != ApplicationPending || app.FarmName != "Kofi Farms" {
		t.Errorf("ApplyAsFarmer() = %+v", app)
	}

	tests := []struct {
		name string
		app  FarmerApplication
	}{
		{"no farm name", FarmerApplication{Username: "kofi", Email: "k@x", Password: "pw", Location: "Tamale"}},
		{"no location", FarmerApplication{Username: "kofi", Email: "k@x", Password: "pw", FarmName: "F"}},
		{"no password", FarmerApplication{Username: "kofi", Email: "k@x", FarmName: "F", Location: "Tamale"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path = ""
			_, err := c.ApplyAsFarmer(context.Background(), tt.app)
			if errors.CodeOf(err) != "E021" {
				t.Errorf("error = %v, want E021", err)
			}
			if path != "" {
				t.Error("invalid application reached the server")
			}
		})
	}
}

func TestSearchProducts(t *testing.T) {
	var q string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.Query().Get("q")
		io.WriteString(w, `{"success":true,"query":"tomato","count":1,"products":[{"id":1,"farmer_id":2,"name":"Tomato","price":4.99,"quantity":10,"unit":"kg","photo_url":null,"is_available":true}]}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL).SearchProducts(context.Background(), "  cherry tomato ")
	if err != nil {
		t.Fatal(err)
	}
	if q != "cherry tomato" {
		t.Errorf("q = %q", q)
	}
	if res.Count != 1 || res.Products[0].Price != 4.99 || res.Products[0].PhotoURL != "" {
		t.Errorf("result = %+v", res)
	}

	if _, err := New(srv.URL).SearchProducts(context.Background(), " "); !errors.HasCategory(err, errors.CategoryValidation) {
		t.Errorf("empty query error = %v", err)
	}
}

func TestCreateProductDefaultsUnit(t *testing.T) {
	var unit, photo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		unit = r.FormValue("unit")
		if f, _, err := r.FormFile("photo"); err == nil {
			b, _ := io.ReadAll(f)
			photo = string(b)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"success":true,"message":"Product created successfully","product":{"id":9,"farmer_id":2,"name":"Yam","price":2,"quantity":5,"unit":"kg","is_available":true}}`)
	}))
	defer srv.Close()

	p, err := New(srv.URL).CreateProduct(context.Background(), NewProduct{
		Name: "Yam", Price: 2, Quantity: 5,
		Photo: &Attachment{Name: "yam.jpg", Reader: strings.NewReader("jpeg")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != 9 || unit != "kg" || photo != "jpeg" {
		t.Errorf("product = %+v unit=%q photo=%q", p, unit, photo)
	}
}

func TestAdminEndpoints(t *testing.T) {
	app := `{"id":4,"username":"bo","email":"b@x","farm_name":"F","location":"L","status":"%s"}`
	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/farmers/applications", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "pending" {
			t.Errorf("status filter = %q", r.URL.Query().Get("status"))
		}
		io.WriteString(w, `{"success":true,"count":1,"applications":[`+strings.Replace(app, "%s", "pending", 1)+`]}`)
	})
	mux.HandleFunc("/api/admin/farmers/applications/4/approve", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"message":"approved","application":`+strings.Replace(app, "%s", "approved", 1)+`,"user":{"id":12,"username":"bo","user_type":"farmer"}}`)
	})
	mux.HandleFunc("/api/admin/farmers/applications/4/deny", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["reason"] != "no certificate" {
			t.Errorf("reason = %q", body["reason"])
		}
		io.WriteString(w, `{"success":true,"message":"denied","application":`+strings.Replace(app, "%s", "denied", 1)+`}`)
	})
	mux.HandleFunc("/api/admin/farmers/applications/stats", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"stats":{"total":3,"pending":1,"approved":1,"denied":1}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := New(srv.URL)

	list, err := c.Applications(ctx, ApplicationPending)
	if err != nil || list.Count != 1 {
		t.Fatalf("Applications() = %+v, %v", list, err)
	}
	dec, err := c.ApproveApplication(ctx, 4)
	if err != nil || dec.User == nil || dec.User.Role != auth.RoleProducer {
		t.Fatalf("ApproveApplication() = %+v, %v", dec, err)
	}
	dec, err = c.DenyApplication(ctx, 4, "no certificate")
	if err != nil || dec.Application.Status != ApplicationDenied {
		t.Fatalf("DenyApplication() = %+v, %v", dec, err)
	}
	stats, err := c.ApplicationStats(ctx)
	if err != nil || stats.Total != 3 {
		t.Fatalf("ApplicationStats() = %+v, %v", stats, err)
	}
	if _, err := c.Applications(ctx, "archived"); !errors.HasCategory(err, errors.CategoryValidation) {
		t.Errorf("unknown status error = %v", err)
	}
}

func TestOrders(t *testing.T) {
	var sent struct {
		Items []OrderLine `json:"items"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&sent)
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"success":true,"message":"Order created successfully","order":{"id":31,"total_amount":9.98,"status":"pending"}}`)
			return
		}
		io.WriteString(w, `{"success":true,"count":1,"orders":[{"id":31,"total_amount":9.98,"status":"pending"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	order, err := c.CreateOrder(context.Background(), []OrderLine{{ID: 1, Price: 4.99, Quantity: 2}})
	if err != nil || order.ID != 31 {
		t.Fatalf("CreateOrder() = %+v, %v", order, err)
	}
	if len(sent.Items) != 1 || sent.Items[0].ID != 1 || sent.Items[0].Quantity != 2 {
		t.Errorf("sent = %+v", sent)
	}
	list, err := c.Orders(context.Background())
	if err != nil || list.Count != 1 {
		t.Fatalf("Orders() = %+v, %v", list, err)
	}
	if _, err := c.CreateOrder(context.Background(), nil); !errors.HasCategory(err, errors.CategoryValidation) {
		t.Errorf("empty order error = %v", err)
	}
}

func TestDelivery(t *testing.T) {
	var status string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/delivery/packages", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"count":1,"packages":[{"id":5,"transporter_id":3,"recipient_name":"Kofi","recipient_address":"Accra","status":"pending","tracking_number":"TRK1"}]}`)
	})
	mux.HandleFunc("/api/delivery/packages/5/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		status = body["status"]
		io.WriteString(w, `{"success":true,"message":"Package status updated","package":{"id":5,"transporter_id":3,"recipient_name":"Kofi","recipient_address":"Accra","status":"in_transit","tracking_number":"TRK1"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	list, err := c.Packages(context.Background())
	if err != nil || list.Packages[0].TrackingNumber != "TRK1" {
		t.Fatalf("Packages() = %+v, %v", list, err)
	}
	pkg, err := c.UpdatePackageStatus(context.Background(), 5, PackageInTransit)
	if err != nil || pkg.Status != PackageInTransit || status != "in_transit" {
		t.Fatalf("UpdatePackageStatus() = %+v, %v (sent %q)", pkg, err, status)
	}
	if _, err := c.UpdatePackageStatus(context.Background(), 5, "lost"); !errors.HasCategory(err, errors.CategoryValidation) {
		t.Errorf("invalid status error = %v", err)
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	var seen string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		io.WriteString(w, `{"message":"ok","user":`+userJSON+`,"access_token":"t"}`)
	})
	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil {
			seen = c.Value
		}
		io.WriteString(w, `{"logged_in":true,"user_id":7}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()
	if _, err := c.Login(ctx, Credentials{Username: "ana", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	info, err := c.GetSession(ctx)
	if err != nil || !info.Active() {
		t.Fatalf("GetSession() = %+v, %v", info, err)
	}
	if seen != "abc" {
		t.Errorf("session cookie = %q, want abc", seen)
	}
}

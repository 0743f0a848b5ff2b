// Package apitest runs an in-memory marketplace API for tests.
//
// The fake speaks the same routes and JSON shapes as the real server and
// keeps just enough state (users, sessions, products, orders,
// applications, packages) for end-to-end tests of the client side.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/greenbasket/storefront/pkg/api"
	"github.com/greenbasket/storefront/pkg/auth"
)

// SessionCookie is the name of the fake's session cookie.
const SessionCookie = "session"

// Server is a fake marketplace API.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	nextID       int64
	users        map[string]*account
	sessions     map[string]string // cookie or token -> username
	products     map[int64]*api.Product
	orders       map[string][]api.Order
	applications []*api.Application
	packages     []*api.Package
	calls        map[string]int
}

type account struct {
	user     api.User
	password string
}

// New starts a fake API with one product seller, a transporter with one
// package and an administrator. It is closed when t ends.
func New(t testing.TB) *Server {
	s := &Server{
		nextID:   100,
		users:    make(map[string]*account),
		sessions: make(map[string]string),
		products: make(map[int64]*api.Product),
		orders:   make(map[string][]api.Order),
		calls:    make(map[string]int),
	}
	farmer := s.AddUser("kofi", "pw", auth.RoleProducer)
	s.AddUser("admin", "pw", auth.RoleAdministrator)
	driver := s.AddUser("tess", "pw", auth.RoleLogisticsOperator)
	s.AddProduct(api.Product{ID: 1, Name: "Tomato", Price: 4.99, Quantity: 10, Unit: "kg", FarmerID: farmer.ID, FarmerUsername: "kofi", Available: true})
	s.AddProduct(api.Product{ID: 2, Name: "Yam", Price: 2.50, Quantity: 3, Unit: "tuber", FarmerID: farmer.ID, FarmerUsername: "kofi", Available: true})
	s.packages = append(s.packages, &api.Package{
		ID: 1, TransporterID: driver.ID, TransporterUsername: "tess",
		RecipientName: "Ana", RecipientAddress: "1 Market St",
		Status: api.PackagePending, TrackingNumber: "TRK-1",
	})

	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// AddUser creates an active account.
func (s *Server) AddUser(username, password string, role auth.Role) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := api.User{ID: s.nextID, Username: username, Email: username + "@example.com", Role: role, Active: true}
	s.users[username] = &account{user: u, password: password}
	return u
}

// AddProduct lists p.
func (s *Server) AddProduct(p api.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.products[p.ID] = &cp
}

// Stock returns the remaining quantity of a product.
func (s *Server) Stock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		return p.Quantity
	}
	return 0
}

// Calls returns how often "METHOD /path" was requested.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Applications returns a copy of the stored applications.
func (s *Server) Applications() []api.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Application, 0, len(s.applications))
	for _, a := range s.applications {
		out = append(out, *a)
	}
	return out
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			s.calls[req.Method+" "+req.URL.Path]++
			s.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})

	r.Post("/api/register", s.register)
	r.Post("/api/login", s.login)
	r.Post("/api/logout", s.logout)
	r.Get("/api/session", s.session)
	r.Get("/api/profile", s.profile)
	r.Get("/api/products/search", s.search)
	r.Get("/api/products/{id}", s.product)
	r.Post("/api/products", s.createProduct)
	r.Post("/api/farmers/apply", s.apply)
	r.Post("/api/orders", s.createOrder)
	r.Get("/api/orders", s.listOrders)

	r.Route("/api/admin/farmers/applications", func(r chi.Router) {
		r.Get("/", s.listApplications)
		r.Get("/stats", s.applicationStats)
		r.Post("/{id}/approve", s.decide(api.ApplicationApproved))
		r.Post("/{id}/deny", s.decide(api.ApplicationDenied))
	})

	r.Get("/api/delivery/packages", s.listPackages)
	r.Put("/api/delivery/packages/{id}/status", s.updatePackage)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// current resolves the caller from the bearer token or session cookie.
func (s *Server) current(r *http.Request) *account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if name, ok := s.sessions[strings.TrimPrefix(h, "Bearer ")]; ok {
			return s.users[name]
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		if name, ok := s.sessions[c.Value]; ok {
			return s.users[name]
		}
	}
	return nil
}

func (s *Server) requireRole(w http.ResponseWriter, r *http.Request, roles ...auth.Role) *account {
	acct := s.current(r)
	if acct == nil {
		fail(w, http.StatusUnauthorized, "Authentication required")
		return nil
	}
	for _, role := range roles {
		if acct.user.Role == role {
			return acct
		}
	}
	fail(w, http.StatusForbidden, "Insufficient permissions")
	return nil
}

func (s *Server) startSession(w http.ResponseWriter, username string) string {
	cookie := uuid.NewString()
	token := "tok-" + uuid.NewString()
	s.mu.Lock()
	s.sessions[cookie] = username
	s.sessions[token] = username
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: cookie, Path: "/", HttpOnly: true})
	return token
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		UserType string `json:"user_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	s.mu.Lock()
	acct, ok := s.users[body.Username]
	s.mu.Unlock()
	if !ok || acct.password != body.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid username or password"})
		return
	}
	if body.UserType != "" && body.UserType != acct.user.Role.Wire() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid user type for this account"})
		return
	}
	token := s.startSession(w, acct.user.Username)
	writeJSON(w, http.StatusOK, api.AuthResponse{Message: "Login successful", User: &acct.user, AccessToken: token})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	fields := map[string]string{}
	certified := false
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			fail(w, http.StatusBadRequest, "Invalid form")
			return
		}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		_, certified = r.MultipartForm.File["certification"]
	} else if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	s.mu.Lock()
	_, exists := s.users[fields["username"]]
	s.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Username already exists"})
		return
	}
	role, err := auth.ParseRole(fields["user_type"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid user type"})
		return
	}

	if role == auth.RoleProducer && certified {
		app := s.queueApplication(fields)
		writeJSON(w, http.StatusCreated, map[string]any{
			"success":     true,
			"message":     "Farmer application submitted successfully. Please wait for admin approval.",
			"application": app,
		})
		return
	}

	u := s.AddUser(fields["username"], fields["password"], role)
	token := s.startSession(w, u.Username)
	writeJSON(w, http.StatusCreated, api.AuthResponse{Message: "User registered successfully", User: &u, AccessToken: token})
}

func (s *Server) queueApplication(fields map[string]string) *api.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	app := &api.Application{
		ID:       s.nextID,
		Username: fields["username"],
		Email:    fields["email"],
		FarmName: fields["farm_name"],
		Location: fields["location"],
		Status:   api.ApplicationPending,
	}
	s.applications = append(s.applications, app)
	return app
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Logged out successfully"})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	acct := s.current(r)
	if acct == nil {
		writeJSON(w, http.StatusOK, api.SessionInfo{})
		return
	}
	id, name, role := acct.user.ID, acct.user.Username, acct.user.Role.Wire()
	writeJSON(w, http.StatusOK, api.SessionInfo{LoggedIn: true, UserID: &id, Username: &name, UserType: &role})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	acct := s.current(r)
	if acct == nil {
		fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, api.ProfileResponse{User: &acct.user})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	if q == "" {
		fail(w, http.StatusBadRequest, "Please provide a search query")
		return
	}
	s.mu.Lock()
	found := []api.Product{}
	for id := int64(0); id <= s.nextID; id++ {
		if p, ok := s.products[id]; ok && p.Available && strings.Contains(strings.ToLower(p.Name), q) {
			found = append(found, *p)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.SearchResult{Success: true, Query: q, Count: len(found), Products: found})
}

func (s *Server) product(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	s.mu.Lock()
	p, ok := s.products[id]
	var cp api.Product
	if ok {
		cp = *p
	}
	s.mu.Unlock()
	if !ok {
		fail(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, api.ProductResponse{Success: true, Product: &cp})
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	acct := s.requireRole(w, r, auth.RoleProducer)
	if acct == nil {
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		fail(w, http.StatusBadRequest, "Invalid form")
		return
	}
	price, _ := strconv.ParseFloat(r.FormValue("price"), 64)
	quantity, _ := strconv.Atoi(r.FormValue("quantity"))
	p := api.Product{
		FarmerID:       acct.user.ID,
		FarmerUsername: acct.user.Username,
		Name:           r.FormValue("name"),
		Description:    r.FormValue("description"),
		Price:          price,
		Quantity:       quantity,
		Unit:           r.FormValue("unit"),
		Category:       r.FormValue("category"),
		Location:       r.FormValue("location"),
		Available:      true,
	}
	if _, h, err := r.FormFile("photo"); err == nil {
		p.PhotoURL = "/uploads/" + h.Filename
	}

	s.mu.Lock()
	s.nextID++
	p.ID = s.nextID
	cp := p
	s.products[p.ID] = &cp
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, api.ProductResponse{Success: true, Message: "Product created", Product: &p})
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	app := s.queueApplication(fields)
	writeJSON(w, http.StatusCreated, api.ApplicationResponse{Success: true, Message: "Application submitted", Application: app})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	acct := s.current(r)
	if acct == nil {
		fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	var body struct {
		Items []api.OrderLine `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Items) == 0 {
		fail(w, http.StatusBadRequest, "No items in order")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range body.Items {
		p, ok := s.products[line.ID]
		if !ok || p.Quantity < line.Quantity {
			name := line.Name
			if ok {
				name = p.Name
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   fmt.Sprintf("Product %s is not available in requested quantity", name),
			})
			return
		}
	}
	s.nextID++
	order := api.Order{ID: s.nextID, UserID: acct.user.ID, Status: "pending"}
	for _, line := range body.Items {
		p := s.products[line.ID]
		p.Quantity -= line.Quantity
		order.TotalAmount += p.Price * float64(line.Quantity)
		order.Items = append(order.Items, api.OrderItem{ProductID: p.ID, Name: p.Name, Quantity: line.Quantity, Price: p.Price})
	}
	name := acct.user.Username
	s.orders[name] = append([]api.Order{order}, s.orders[name]...)
	writeJSON(w, http.StatusCreated, api.OrderResponse{Success: true, Message: "Order created successfully", Order: &order})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	acct := s.current(r)
	if acct == nil {
		fail(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	s.mu.Lock()
	orders := append([]api.Order{}, s.orders[acct.user.Username]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.OrderList{Success: true, Count: len(orders), Orders: orders})
}

func (s *Server) listApplications(w http.ResponseWriter, r *http.Request) {
	if s.requireRole(w, r, auth.RoleAdministrator) == nil {
		return
	}
	status := api.ApplicationStatus(r.URL.Query().Get("status"))
	s.mu.Lock()
	list := []api.Application{}
	for _, a := range s.applications {
		if status == "" || a.Status == status {
			list = append(list, *a)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.ApplicationList{Success: true, Count: len(list), Applications: list})
}

func (s *Server) applicationStats(w http.ResponseWriter, r *http.Request) {
	if s.requireRole(w, r, auth.RoleAdministrator) == nil {
		return
	}
	var st api.ApplicationStats
	s.mu.Lock()
	for _, a := range s.applications {
		st.Total++
		switch a.Status {
		case api.ApplicationPending:
			st.Pending++
		case api.ApplicationApproved:
			st.Approved++
		case api.ApplicationDenied:
			st.Denied++
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": st})
}

func (s *Server) decide(to api.ApplicationStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.requireRole(w, r, auth.RoleAdministrator) == nil {
			return
		}
		id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		s.mu.Lock()
		var app *api.Application
		for _, a := range s.applications {
			if a.ID == id {
				app = a
			}
		}
		if app == nil {
			s.mu.Unlock()
			fail(w, http.StatusNotFound, "Application not found")
			return
		}
		if app.Status != api.ApplicationPending {
			s.mu.Unlock()
			fail(w, http.StatusBadRequest, "Application has already been reviewed")
			return
		}
		app.Status = to
		app.DenialReason = body.Reason
		cp := *app
		s.mu.Unlock()

		resp := api.ApplicationDecision{Success: true, Message: "Application " + string(to), Application: &cp}
		if to == api.ApplicationApproved {
			u := s.AddUser(cp.Username, "pw", auth.RoleProducer)
			resp.User = &u
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	acct := s.requireRole(w, r, auth.RoleLogisticsOperator, auth.RoleAdministrator)
	if acct == nil {
		return
	}
	s.mu.Lock()
	list := []api.Package{}
	for _, p := range s.packages {
		if acct.user.Role == auth.RoleAdministrator || p.TransporterID == acct.user.ID {
			list = append(list, *p)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.PackageList{Success: true, Count: len(list), Packages: list})
}

func (s *Server) updatePackage(w http.ResponseWriter, r *http.Request) {
	acct := s.requireRole(w, r, auth.RoleLogisticsOperator, auth.RoleAdministrator)
	if acct == nil {
		return
	}
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var body struct {
		Status api.PackageStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body.Status.Valid() {
		fail(w, http.StatusBadRequest, "Invalid status")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.packages {
		if p.ID == id && (acct.user.Role == auth.RoleAdministrator || p.TransporterID == acct.user.ID) {
			p.Status = body.Status
			cp := *p
			writeJSON(w, http.StatusOK, api.PackageResponse{Success: true, Message: "Package status updated", Package: &cp})
			return
		}
	}
	fail(w, http.StatusNotFound, "Package not found")
}

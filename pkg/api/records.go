package api

import (
	"fmt"

	"github.com/greenbasket/storefront/pkg/auth"
)

// User is a marketplace account.
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Role          auth.Role `json:"user_type"`
	CreatedAt     string    `json:"created_at,omitempty"`
	Active        bool      `json:"is_active"`
	AverageRating *float64  `json:"average_rating,omitempty"`
	RatingCount   int       `json:"rating_count,omitempty"`
}

func (u *User) validate() error {
	if u == nil {
		return fmt.Errorf("user: missing")
	}
	if u.ID <= 0 {
		return fmt.Errorf("user: invalid id %d", u.ID)
	}
	if u.Username == "" {
		return fmt.Errorf("user %d: missing username", u.ID)
	}
	return nil
}

// AuthResponse is returned by login and non-farmer registration.
type AuthResponse struct {
	Message     string `json:"message"`
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
}

func (r *AuthResponse) validate() error {
	return r.User.validate()
}

// SessionInfo describes the server-side session bound to the cookie.
type SessionInfo struct {
	LoggedIn bool    `json:"logged_in"`
	UserID   *int64  `json:"user_id"`
	Username *string `json:"username"`
	UserType *string `json:"user_type"`
}

func (s *SessionInfo) validate() error { return nil }

// Active reports whether the server considers the session logged in.
func (s *SessionInfo) Active() bool {
	return s.LoggedIn && s.UserID != nil && *s.UserID != 0
}

// ProfileResponse wraps the current user's profile.
type ProfileResponse struct {
	User *User `json:"user"`
}

func (r *ProfileResponse) validate() error {
	return r.User.validate()
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

func (r *MessageResponse) validate() error { return nil }

// Product is a listing offered by a farmer.
type Product struct {
	ID             int64   `json:"id"`
	FarmerID       int64   `json:"farmer_id"`
	FarmerUsername string  `json:"farmer_username,omitempty"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	Price          float64 `json:"price"`
	Quantity       int     `json:"quantity"`
	Unit           string  `json:"unit,omitempty"`
	Category       string  `json:"category,omitempty"`
	PhotoURL       string  `json:"photo_url,omitempty"`
	Location       string  `json:"location,omitempty"`
	CreatedAt      string  `json:"created_at,omitempty"`
	Available      bool    `json:"is_available"`
	Farmer         *User   `json:"farmer,omitempty"`
}

func (p *Product) validate() error {
	if p == nil {
		return fmt.Errorf("product: missing")
	}
	if p.ID <= 0 {
		return fmt.Errorf("product: invalid id %d", p.ID)
	}
	if p.Price < 0 {
		return fmt.Errorf("product %d: negative price", p.ID)
	}
	return nil
}

// ProductResponse wraps a single product.
type ProductResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Product *Product `json:"product"`
}

func (r *ProductResponse) validate() error {
	return r.Product.validate()
}

// SearchResult is the response of a product search.
type SearchResult struct {
	Success  bool      `json:"success"`
	Query    string    `json:"query"`
	Count    int       `json:"count"`
	Products []Product `json:"products"`
}

func (r *SearchResult) validate() error {
	for i := range r.Products {
		if err := r.Products[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationStatus is the review state of a farmer application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationDenied   ApplicationStatus = "denied"
)

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationApproved, ApplicationDenied:
		return true
	}
	return false
}

// Application is a request to become a farmer.
type Application struct {
	ID               int64             `json:"id"`
	Username         string            `json:"username"`
	Email            string            `json:"email"`
	FarmName         string            `json:"farm_name"`
	Location         string            `json:"location"`
	Phone            string            `json:"phone,omitempty"`
	Description      string            `json:"description,omitempty"`
	Status           ApplicationStatus `json:"status"`
	CertificationURL string            `json:"certification_url,omitempty"`
	CreatedAt        string            `json:"created_at,omitempty"`
	ReviewedAt       string            `json:"reviewed_at,omitempty"`
	ReviewedBy       *int64            `json:"reviewed_by,omitempty"`
	DenialReason     string            `json:"denial_reason,omitempty"`
}

func (a *Application) validate() error {
	if a == nil {
		return fmt.Errorf("application: missing")
	}
	if a.ID <= 0 {
		return fmt.Errorf("application: invalid id %d", a.ID)
	}
	if !a.Status.Valid() {
		return fmt.Errorf("application %d: unknown status %q", a.ID, a.Status)
	}
	return nil
}

// ApplicationResponse wraps a single application.
type ApplicationResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Application *Application `json:"application"`
}

func (r *ApplicationResponse) validate() error {
	return r.Application.validate()
}

// ApplicationDecision is returned by approve and deny. User is set when an
// approval created the farmer account.
type ApplicationDecision struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Application *Application `json:"application"`
	User        *User        `json:"user,omitempty"`
}

func (r *ApplicationDecision) validate() error {
	if err := r.Application.validate(); err != nil {
		return err
	}
	if r.User != nil {
		return r.User.validate()
	}
	return nil
}

// ApplicationList is a filtered list of applications.
type ApplicationList struct {
	Success      bool          `json:"success"`
	Count        int           `json:"count"`
	Applications []Application `json:"applications"`
}

func (r *ApplicationList) validate() error {
	for i := range r.Applications {
		if err := r.Applications[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationStats counts applications by status.
type ApplicationStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Denied   int `json:"denied"`
}

type statsResponse struct {
	Success bool              `json:"success"`
	Stats   *ApplicationStats `json:"stats"`
}

func (r *statsResponse) validate() error {
	if r.Stats == nil {
		return fmt.Errorf("stats: missing")
	}
	return nil
}

// RegisterResult is the outcome of a registration. Exactly one of Auth and
// Application is set: Application when a farmer registration was queued
// for review.
type RegisterResult struct {
	Auth        *AuthResponse
	Application *ApplicationResponse
}

// PendingApproval reports whether the registration awaits review.
func (r *RegisterResult) PendingApproval() bool {
	return r.Application != nil
}

// registerEnvelope accepts either registration response shape.
type registerEnvelope struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	User        *User        `json:"user"`
	AccessToken string       `json:"access_token"`
	Application *Application `json:"application"`
}

func (e *registerEnvelope) validate() error {
	if e.Application != nil {
		return e.Application.validate()
	}
	return e.User.validate()
}

func (e *registerEnvelope) result() *RegisterResult {
	if e.Application != nil {
		return &RegisterResult{Application: &ApplicationResponse{
			Success:     e.Success,
			Message:     e.Message,
			Application: e.Application,
		}}
	}
	return &RegisterResult{Auth: &AuthResponse{
		Message:     e.Message,
		User:        e.User,
		AccessToken: e.AccessToken,
	}}
}

// OrderItem is one product line of an order.
type OrderItem struct {
	ID        int64   `json:"id,omitempty"`
	ProductID int64   `json:"product_id"`
	Name      string  `json:"product_name,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is a placed order.
type Order struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id,omitempty"`
	TotalAmount float64     `json:"total_amount"`
	Status      string      `json:"status"`
	CreatedAt   string      `json:"created_at,omitempty"`
	Items       []OrderItem `json:"items,omitempty"`
}

func (o *Order) validate() error {
	if o == nil {
		return fmt.Errorf("order: missing")
	}
	if o.ID <= 0 {
		return fmt.Errorf("order: invalid id %d", o.ID)
	}
	return nil
}

// OrderResponse wraps a created order.
type OrderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   *Order `json:"order"`
}

func (r *OrderResponse) validate() error {
	return r.Order.validate()
}

// OrderList is the current user's order history, newest first.
type OrderList struct {
	Success bool    `json:"success"`
	Count   int     `json:"count"`
	Orders  []Order `json:"orders"`
}

func (r *OrderList) validate() error {
	for i := range r.Orders {
		if err := r.Orders[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// PackageStatus is the delivery state of a package.
type PackageStatus string

const (
	PackagePending   PackageStatus = "pending"
	PackagePickedUp  PackageStatus = "picked_up"
	PackageInTransit PackageStatus = "in_transit"
	PackageDelivered PackageStatus = "delivered"
	PackageFailed    PackageStatus = "failed"
)

// PackageStatuses lists every valid package status.
func PackageStatuses() []PackageStatus {
	return []PackageStatus{PackagePending, PackagePickedUp, PackageInTransit, PackageDelivered, PackageFailed}
}

// Valid reports whether s is a known status.
func (s PackageStatus) Valid() bool {
	for _, v := range PackageStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// Package is a delivery assigned to a transporter.
type Package struct {
	ID                  int64         `json:"id"`
	TransporterID       int64         `json:"transporter_id"`
	TransporterUsername string        `json:"transporter_username,omitempty"`
	RecipientName       string        `json:"recipient_name"`
	RecipientAddress    string        `json:"recipient_address"`
	Status              PackageStatus `json:"status"`
	TrackingNumber      string        `json:"tracking_number"`
	CreatedAt           string        `json:"created_at,omitempty"`
	UpdatedAt           string        `json:"updated_at,omitempty"`
}

func (p *Package) validate() error {
	if p == nil {
		return fmt.Errorf("package: missing")
	}
	if p.ID <= 0 {
		return fmt.Errorf("package: invalid id %d", p.ID)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("package %d: unknown status %q", p.ID, p.Status)
	}
	return nil
}

// PackageList is the packages visible to the current user.
type PackageList struct {
	Success  bool      `json:"success"`
	Count    int       `json:"count"`
	Packages []Package `json:"packages"`
}

func (r *PackageList) validate() error {
	for i := range r.Packages {
		if err := r.Packages[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// PackageResponse wraps an updated package.
type PackageResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Package *Package `json:"package"`
}

func (r *PackageResponse) validate() error {
	return r.Package.validate()
}

package api

import (
	"io"
	"slices"
	"strings"

	"github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/pkg/auth"
)

// Attachment is a file sent in a multipart request.
type Attachment struct {
	// Name is the file name reported to the server.
	Name string
	// Reader supplies the file contents.
	Reader io.Reader
}

// Credentials are the fields of a login request. RoleHint, when not a
// guest, asks the server to reject an account of a different role.
type Credentials struct {
	Username string
	Password string
	RoleHint auth.Role
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
	UserType string `json:"user_type,omitempty"`
}

func (c Credentials) validate() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return errors.New("E021").WithMessage("Username and password are required")
	}
	return nil
}

// Registration holds the fields of a register request. Farm fields and
// Certification apply to farmer registrations only.
type Registration struct {
	Username      string
	Email         string
	Password      string
	Role          auth.Role
	FarmName      string
	Location      string
	Phone         string
	Description   string
	Certification *Attachment
}

// Multipart reports whether the registration is sent as multipart form
// data, which is the case for a farmer with a certification document.
func (r Registration) Multipart() bool {
	return r.Role == auth.RoleProducer && r.Certification != nil
}

func (r Registration) validate() error {
	if strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return errors.New("E021").WithMessage("Username, email, and password are required")
	}
	if !slices.Contains(auth.RegisterableRoles(), r.Role) {
		return errors.New("E021").WithMessage("User type must be one of: user, farmer, transporter")
	}
	return nil
}

type registerBody struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	UserType    string `json:"user_type"`
	FarmName    string `json:"farm_name,omitempty"`
	Location    string `json:"location,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Description string `json:"description,omitempty"`
}

func (r Registration) body() registerBody {
	return registerBody{
		Username:    r.Username,
		Email:       r.Email,
		Password:    r.Password,
		UserType:    r.Role.Wire(),
		FarmName:    r.FarmName,
		Location:    r.Location,
		Phone:       r.Phone,
		Description: r.Description,
	}
}

func (r Registration) formData() map[string]string {
	form := map[string]string{
		"username":  r.Username,
		"email":     r.Email,
		"password":  r.Password,
		"user_type": r.Role.Wire(),
	}
	optional := map[string]string{
		"farm_name":   r.FarmName,
		"location":    r.Location,
		"phone":       r.Phone,
		"description": r.Description,
	}
	for k, v := range optional {
		if v != "" {
			form[k] = v
		}
	}
	return form
}

// FarmerApplication is a standalone request to become a farmer.
type FarmerApplication struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FarmName    string `json:"farm_name"`
	Location    string `json:"location"`
	Phone       string `json:"phone,omitempty"`
	Description string `json:"description,omitempty"`
}

func (a FarmerApplication) validate() error {
	if a.Username == "" || a.Email == "" || a.Password == "" || a.FarmName == "" || a.Location == "" {
		return errors.New("E021").WithMessage("Username, email, password, farm name and location are required")
	}
	return nil
}

// NewProduct is a product listing to create.
type NewProduct struct {
	Name        string
	Description string
	Price       float64
	Quantity    int
	Unit        string
	Category    string
	Location    string
	Photo       *Attachment
}

func (p NewProduct) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("E021").WithMessage("Product name is required")
	}
	if p.Price < 0 {
		return errors.New("E021").WithMessage("Price must not be negative")
	}
	if p.Quantity < 0 {
		return errors.New("E021").WithMessage("Quantity must not be negative")
	}
	return nil
}

// OrderLine is one cart line submitted with an order.
type OrderLine struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name,omitempty"`
	Price          float64 `json:"price"`
	Quantity       int     `json:"quantity"`
	Unit           string  `json:"unit,omitempty"`
	FarmerID       int64   `json:"farmer_id,omitempty"`
	FarmerUsername string  `json:"farmer_username,omitempty"`
}

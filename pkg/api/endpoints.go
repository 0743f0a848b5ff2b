package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/pkg/auth"
)

func idParam(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Register creates an account. Farmer registrations that carry a
// certification document are sent as multipart form data and come back
// pending approval instead of logged in.
func (c *Client) Register(ctx context.Context, r Registration) (*RegisterResult, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	var env registerEnvelope
	err := c.do(ctx, http.MethodPost, "/api/register", func(req *resty.Request) {
		if r.Multipart() {
			req.SetMultipartFormData(r.formData()).
				SetFileReader("certification", r.Certification.Name, r.Certification.Reader)
			return
		}
		req.SetBody(r.body())
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.result(), nil
}

// Login authenticates with a username and password.
func (c *Client) Login(ctx context.Context, cr Credentials) (*AuthResponse, error) {
	if err := cr.validate(); err != nil {
		return nil, err
	}
	body := loginBody{Username: cr.Username, Password: cr.Password}
	if cr.RoleHint != auth.RoleGuest {
		body.UserType = cr.RoleHint.Wire()
	}
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/login", func(req *resty.Request) {
		req.SetBody(body)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	var out MessageResponse
	return c.do(ctx, http.MethodPost, "/api/logout", nil, &out)
}

// GetSession reports the server-side session bound to the cookie.
func (c *Client) GetSession(ctx context.Context) (*SessionInfo, error) {
	var out SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProfile returns the logged-in user's profile.
func (c *Client) GetProfile(ctx context.Context) (*User, error) {
	var out ProfileResponse
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// SearchProducts finds available products whose name contains query.
func (c *Client) SearchProducts(ctx context.Context, query string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("E021").WithMessage("Please provide a search query")
	}
	var out SearchResult
	err := c.do(ctx, http.MethodGet, "/api/products/search", func(req *resty.Request) {
		req.SetQueryParam("q", query)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProduct returns one available product with its farmer.
func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var out ProductResponse
	err := c.do(ctx, http.MethodGet, "/api/products/{id}", func(req *resty.Request) {
		req.SetPathParam("id", idParam(id))
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Product, nil
}

// CreateProduct lists a new product for the logged-in farmer.
func (c *Client) CreateProduct(ctx context.Context, p NewProduct) (*Product, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	unit := p.Unit
	if unit == "" {
		unit = "kg"
	}
	form := map[string]string{
		"name":        p.Name,
		"description": p.Description,
		"price":       strconv.FormatFloat(p.Price, 'f', -1, 64),
		"quantity":    strconv.Itoa(p.Quantity),
		"unit":        unit,
		"category":    p.Category,
		"location":    p.Location,
	}
	var out ProductResponse
	err := c.do(ctx, http.MethodPost, "/api/products", func(req *resty.Request) {
		req.SetMultipartFormData(form)
		if p.Photo != nil {
			req.SetFileReader("photo", p.Photo.Name, p.Photo.Reader)
		}
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Product, nil
}

// ApplyAsFarmer submits a farmer application without a certification.
func (c *Client) ApplyAsFarmer(ctx context.Context, a FarmerApplication) (*Application, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	var out ApplicationResponse
	err := c.do(ctx, http.MethodPost, "/api/farmers/apply", func(req *resty.Request) {
		req.SetBody(a)
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Application, nil
}

// Applications lists farmer applications, optionally filtered by status.
func (c *Client) Applications(ctx context.Context, status ApplicationStatus) (*ApplicationList, error) {
	if status != "" && !status.Valid() {
		return nil, errors.New("E021").WithMessage("Unknown application status " + strconv.Quote(string(status)))
	}
	var out ApplicationList
	err := c.do(ctx, http.MethodGet, "/api/admin/farmers/applications", func(req *resty.Request) {
		if status != "" {
			req.SetQueryParam("status", string(status))
		}
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ApproveApplication approves an application and creates the farmer
// account.
func (c *Client) ApproveApplication(ctx context.Context, id int64) (*ApplicationDecision, error) {
	var out ApplicationDecision
	err := c.do(ctx, http.MethodPost, "/api/admin/farmers/applications/{id}/approve", func(req *resty.Request) {
		req.SetPathParam("id", idParam(id))
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DenyApplication denies an application with an optional reason.
func (c *Client) DenyApplication(ctx context.Context, id int64, reason string) (*ApplicationDecision, error) {
	var out ApplicationDecision
	err := c.do(ctx, http.MethodPost, "/api/admin/farmers/applications/{id}/deny", func(req *resty.Request) {
		req.SetPathParam("id", idParam(id)).
			SetBody(map[string]string{"reason": reason})
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplicationStats counts applications by status.
func (c *Client) ApplicationStats(ctx context.Context) (*ApplicationStats, error) {
	var out statsResponse
	if err := c.do(ctx, http.MethodGet, "/api/admin/farmers/applications/stats", nil, &out); err != nil {
		return nil, err
	}
	return out.Stats, nil
}

// CreateOrder places an order for the given lines.
func (c *Client) CreateOrder(ctx context.Context, lines []OrderLine) (*Order, error) {
	if len(lines) == 0 {
		return nil, errors.New("E020")
	}
	var out OrderResponse
	err := c.do(ctx, http.MethodPost, "/api/orders", func(req *resty.Request) {
		req.SetBody(map[string]any{"items": lines})
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Order, nil
}

// Orders lists the current user's orders.
func (c *Client) Orders(ctx context.Context) (*OrderList, error) {
	var out OrderList
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Packages lists packages assigned to the current transporter, or all
// packages for an administrator.
func (c *Client) Packages(ctx context.Context) (*PackageList, error) {
	var out PackageList
	if err := c.do(ctx, http.MethodGet, "/api/delivery/packages", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePackageStatus moves a package to status.
func (c *Client) UpdatePackageStatus(ctx context.Context, id int64, status PackageStatus) (*Package, error) {
	if !status.Valid() {
		return nil, errors.New("E021").
			WithMessage("Status must be one of: pending, picked_up, in_transit, delivered, failed")
	}
	var out PackageResponse
	err := c.do(ctx, http.MethodPut, "/api/delivery/packages/{id}/status", func(req *resty.Request) {
		req.SetPathParam("id", idParam(id)).
			SetBody(map[string]string{"status": string(status)})
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Package, nil
}

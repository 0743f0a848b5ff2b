package gateway

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/greenbasket/storefront/pkg/api"
	"github.com/greenbasket/storefront/pkg/auth"
	"github.com/greenbasket/storefront/pkg/cart"
	"github.com/greenbasket/storefront/pkg/toast"
	"github.com/greenbasket/storefront/pkg/upload"
)

const (
	capCheckout   = auth.CapCheckout
	capViewOrders = auth.CapViewOrders
	capReview     = auth.CapReviewApplications
	capDeliver    = auth.CapDeliver
	capSell       = auth.CapSell
)

// require rejects the request unless the context's user holds c: 401 for
// guests, 403 for a role without it.
func (s *Server) require(c auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bc := contextFrom(r)
			cur := bc.App.Session.Current()
			role := auth.RoleGuest
			if cur.Authenticated() {
				role = cur.Role
			}
			if err := auth.Require(role, c); err != nil {
				s.fail(w, bc, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// fail writes err and shows it to the browser as a toast.
func (s *Server) fail(w http.ResponseWriter, bc *browserContext, err error) {
	err = normalize(err)
	if bc != nil {
		bc.hub.Emit(toast.EventName, toast.FromError(err))
	}
	writeError(w, err)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		return badRequest("Invalid JSON body")
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("Invalid id " + strconv.Quote(chi.URLParam(r, "id")))
	}
	return id, nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateOf(contextFrom(r)))
}

// addItemRequest is a product to add. When only the id is given the
// product is looked up through the API.
type addItemRequest struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Unit       string  `json:"unit"`
	PhotoURL   string  `json:"photo_url"`
	SellerID   int64   `json:"farmer_id"`
	SellerName string  `json:"farmer_username"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	var req addItemRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, bc, err)
		return
	}
	if req.ID <= 0 {
		s.fail(w, bc, badRequest("Product id is required"))
		return
	}

	p := cart.Product{
		ID:         req.ID,
		Name:       req.Name,
		Price:      req.Price,
		Unit:       req.Unit,
		PhotoURL:   req.PhotoURL,
		SellerID:   req.SellerID,
		SellerName: req.SellerName,
	}
	if p.Name == "" {
		found, err := bc.App.API.GetProduct(r.Context(), req.ID)
		if err != nil {
			s.fail(w, bc, err)
			return
		}
		p = cart.FromAPI(*found)
	}
	bc.App.Cart.Add(p)
	toast.Success(bc.hub, "Added "+p.Name+" to cart")
	writeJSON(w, http.StatusOK, stateOf(bc))
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	id, err := idParam(r)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, bc, err)
		return
	}
	if req.Quantity == nil {
		s.fail(w, bc, badRequest("Quantity is required"))
		return
	}
	bc.App.Cart.UpdateQuantity(id, *req.Quantity)
	writeJSON(w, http.StatusOK, stateOf(bc))
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	id, err := idParam(r)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	bc.App.Cart.Remove(id)
	writeJSON(w, http.StatusOK, stateOf(bc))
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	bc.App.Cart.Clear()
	writeJSON(w, http.StatusOK, stateOf(bc))
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	order, err := bc.App.Cart.Checkout(r.Context(), bc.App.API)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	toast.Success(bc.hub, "Order placed")
	writeJSON(w, http.StatusCreated, map[string]any{"order": order, "state": stateOf(bc)})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	list, err := bc.App.API.Orders(r.Context())
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	res, err := bc.App.API.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	id, err := idParam(r)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	p, err := bc.App.API.GetProduct(r.Context(), id)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCreateProduct lists a product for the logged-in farmer. The body
// is multipart with an optional "photo" file, or JSON without one.
func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	var req struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		Quantity    int     `json:"quantity"`
		Unit        string  `json:"unit"`
		Category    string  `json:"category"`
		Location    string  `json:"location"`
	}
	var photo *api.Attachment

	if isMultipart(r) {
		cfg := upload.Images()
		if err := upload.ParseForm(w, r, cfg); err != nil {
			s.fail(w, bc, uploadError(err))
			return
		}
		price, err := strconv.ParseFloat(r.FormValue("price"), 64)
		if err != nil {
			s.fail(w, bc, badRequest("Price must be a number"))
			return
		}
		quantity, err := strconv.Atoi(r.FormValue("quantity"))
		if err != nil {
			s.fail(w, bc, badRequest("Quantity must be a whole number"))
			return
		}
		req.Name = r.FormValue("name")
		req.Description = r.FormValue("description")
		req.Price = price
		req.Quantity = quantity
		req.Unit = r.FormValue("unit")
		req.Category = r.FormValue("category")
		req.Location = r.FormValue("location")

		f, err := upload.Read(r, "photo", cfg)
		if err != nil {
			s.fail(w, bc, uploadError(err))
			return
		}
		if f != nil {
			photo = f.Attachment()
		}
	} else if err := decode(r, &req); err != nil {
		s.fail(w, bc, err)
		return
	}

	p, err := bc.App.API.CreateProduct(r.Context(), api.NewProduct{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		Category:    req.Category,
		Location:    req.Location,
		Photo:       photo,
	})
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	toast.Success(bc.hub, "Listed "+p.Name)
	writeJSON(w, http.StatusCreated, p)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, bc, err)
		return
	}
	hint, err := auth.ParseRole(req.UserType)
	if err != nil {
		s.fail(w, bc, badRequest(err.Error()))
		return
	}
	sess, err := bc.App.Session.Login(r.Context(), req.Username, req.Password, hint)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	toast.Success(bc.hub, "Welcome back, "+sess.Username)
	writeJSON(w, http.StatusOK, stateOf(bc))
}

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	UserType    string `json:"user_type"`
	FarmName    string `json:"farm_name"`
	Location    string `json:"location"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
}

// readRegistration accepts JSON or, for producers with a certification
// document, multipart form data.
func readRegistration(w http.ResponseWriter, r *http.Request) (api.Registration, error) {
	var req registerRequest
	var cert *api.Attachment

	if isMultipart(r) {
		cfg := upload.Documents()
		if err := upload.ParseForm(w, r, cfg); err != nil {
			return api.Registration{}, uploadError(err)
		}
		req = registerRequest{
			Username:    r.FormValue("username"),
			Email:       r.FormValue("email"),
			Password:    r.FormValue("password"),
			UserType:    r.FormValue("user_type"),
			FarmName:    r.FormValue("farm_name"),
			Location:    r.FormValue("location"),
			Phone:       r.FormValue("phone"),
			Description: r.FormValue("description"),
		}
		f, err := upload.Read(r, "certification", cfg)
		if err != nil {
			return api.Registration{}, uploadError(err)
		}
		if f != nil {
			cert = f.Attachment()
		}
	} else if err := decode(r, &req); err != nil {
		return api.Registration{}, err
	}

	role, err := auth.ParseRole(req.UserType)
	if err != nil {
		return api.Registration{}, badRequest(err.Error())
	}
	return api.Registration{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		Role:          role,
		FarmName:      req.FarmName,
		Location:      req.Location,
		Phone:         req.Phone,
		Description:   req.Description,
		Certification: cert,
	}, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/")
}

func uploadError(err error) error {
	switch {
	case stderrors.Is(err, upload.ErrTooLarge):
		return badRequest("File is too large")
	case stderrors.Is(err, upload.ErrTypeNotAllowed):
		return badRequest("File type is not allowed")
	}
	return badRequest("Invalid multipart body")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	reg, err := readRegistration(w, r)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	res, err := bc.App.Session.Register(r.Context(), reg)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	toast.Success(bc.hub, res.Message)
	writeJSON(w, http.StatusCreated, map[string]any{
		"outcome":     res.Outcome.String(),
		"message":     res.Message,
		"application": res.Application,
		"state":       stateOf(bc),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	if err := bc.App.Session.Logout(r.Context()); err != nil {
		s.logger.Debug("remote logout failed", "context_id", bc.ID, "error", err)
	}
	toast.Info(bc.hub, "Logged out")
	writeJSON(w, http.StatusOK, stateOf(bc))
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	bc.App.Session.CheckSession(r.Context())
	writeJSON(w, http.StatusOK, stateOf(bc))
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	list, err := bc.App.API.Applications(r.Context(), api.ApplicationStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleApplicationStats(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	stats, err := bc.App.API.ApplicationStats(r.Context())
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	id, err := idParam(r)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	res, err := bc.App.API.ApproveApplication(r.Context(), id)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	toast.Success(bc.hub, res.Message)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeny(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	id, err := idParam(r)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			s.fail(w, bc, err)
			return
		}
	}
	res, err := bc.App.API.DenyApplication(r.Context(), id, req.Reason)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	toast.Success(bc.hub, res.Message)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	list, err := bc.App.API.Packages(r.Context())
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePackageStatus(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	id, err := idParam(r)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	var req struct {
		Status api.PackageStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, bc, err)
		return
	}
	pkg, err := bc.App.API.UpdatePackageStatus(r.Context(), id, req.Status)
	if err != nil {
		s.fail(w, bc, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

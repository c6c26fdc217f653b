package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"storefront/auth"
	"storefront/imagestore"
	models "storefront/model"
	"storefront/service"
	"storefront/store"
)

// maxUploadBytes caps product and image request bodies.
const maxUploadBytes = 10 << 20

// TokenVerifier resolves a bearer token to the caller's identity.
type TokenVerifier interface {
	Verify(raw string) (auth.Identity, error)
}

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc    service.ServiceInterface
	tokens TokenVerifier
	log    *log.Logger
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, tokens TokenVerifier, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{svc: s, tokens: tokens, log: logger}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Products
	api.HandleFunc("/products", h.ListProducts).Methods("GET")
	api.HandleFunc("/products/search", h.SearchProducts).Methods("GET")
	api.HandleFunc("/product/{id}", h.GetProduct).Methods("GET")
	api.HandleFunc("/product", h.requireRole(models.RoleAdmin, h.CreateProduct)).Methods("POST")
	api.HandleFunc("/product/{id}", h.requireRole(models.RoleAdmin, h.UpdateProduct)).Methods("PUT")
	api.HandleFunc("/product/{id}", h.requireRole(models.RoleAdmin, h.DeleteProduct)).Methods("DELETE")
	api.HandleFunc("/upload-image", h.requireRole(models.RoleAdmin, h.UploadImage)).Methods("POST")

	// Cart
	api.HandleFunc("/cart/{username}", h.requireAuth(h.GetCart)).Methods("GET")
	api.HandleFunc("/cart/{username}/add", h.requireAuth(h.AddToCart)).Methods("POST")
	api.HandleFunc("/cart/{username}/remove", h.requireAuth(h.RemoveFromCart)).Methods("DELETE")
	api.HandleFunc("/cart/{username}/clear", h.requireAuth(h.ClearCart)).Methods("DELETE")

	// Accounts
	api.HandleFunc("/auth/signup", h.Signup).Methods("POST")
	api.HandleFunc("/auth/login", h.Login).Methods("POST")
}

// RegisterUploads serves the disk image backend's files under /uploads/.
func RegisterUploads(r *mux.Router, dir string) {
	r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))).Methods("GET")
}

// --- request / response shapes ---
type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeServiceErr maps the error taxonomy onto status codes. Unexpected errors are
// logged and answered with a generic message.
func (h *Handler) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInvalidReference):
		writeErr(w, http.StatusBadRequest, "product does not exist")
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeErr(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrPermissionDenied):
		writeErr(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, imagestore.ErrUploadFailed):
		h.log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeErr(w, http.StatusBadGateway, "image upload failed")
	case errors.Is(err, store.ErrConflict):
		writeErr(w, http.StatusConflict, "conflicting update, please retry")
	default:
		h.log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeErr(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

func queryInt64(r *http.Request, key string) (int64, bool) {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return v, err == nil
}

// queryInt32 rejects values an INTEGER column cannot hold.
func queryInt32(r *http.Request, key string) (int, bool) {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 32)
	return int(v), err == nil
}

// decodeProduct reads a product from a JSON body, or from the "product" part of a
// multipart form together with an optional "image" file.
func decodeProduct(w http.ResponseWriter, r *http.Request) (service.ProductInput, *service.ImageUpload, error) {
	var in service.ProductInput
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return in, nil, errors.New("invalid json")
		}
		return in, nil, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return in, nil, errors.New("invalid multipart form")
	}
	raw, err := formPart(r, "product")
	if err != nil {
		return in, nil, errors.New("product part is required")
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, nil, errors.New("invalid product json")
	}

	img, err := formImage(r)
	if err != nil {
		return in, nil, err
	}
	return in, img, nil
}

// formPart returns a form field sent either as a value or as a file part.
func formPart(r *http.Request, name string) ([]byte, error) {
	if v, ok := r.MultipartForm.Value[name]; ok && len(v) > 0 {
		return []byte(v[0]), nil
	}
	f, _, err := r.FormFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formImage(r *http.Request) (*service.ImageUpload, error) {
	f, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New("invalid image part")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New("invalid image part")
	}
	return &service.ImageUpload{
		Data: data,
		Meta: imagestore.Meta{Filename: hdr.Filename, ContentType: hdr.Header.Get("Content-Type")},
	}, nil
}

// --- Handler ---

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// ListProducts handles GET /api/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// SearchProducts handles GET /api/products/search?keyword=...
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.SearchProducts(r.Context(), r.URL.Query().Get("keyword"))
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// GetProduct handles GET /api/product/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateProduct handles POST /api/product
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, img, err := decodeProduct(w, r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), in, img)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdateProduct handles PUT /api/product/{id}
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}
	in, img, err := decodeProduct(w, r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), id, in, img)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /api/product/{id}
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Product deleted"})
}

// UploadImage handles POST /api/upload-image (multipart, "image" file). The returned
// reference is attached to a product through its imageUrl field.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	img, err := formImage(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if img == nil {
		writeErr(w, http.StatusBadRequest, "image is required")
		return
	}
	url, err := h.svc.UploadImage(r.Context(), *img)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, url)
}

// GetCart handles GET /api/cart/{username}
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	owner, err := cartOwner(r)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	items, err := h.svc.GetCart(r.Context(), owner)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// AddToCart handles POST /api/cart/{username}/add?productId=1&quantity=2
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	owner, err := cartOwner(r)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	productID, ok := queryInt64(r, "productId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "productId is required")
		return
	}
	qty, ok := queryInt32(r, "quantity")
	if !ok {
		writeErr(w, http.StatusBadRequest, "quantity must be an integer up to 2147483647")
		return
	}
	items, err := h.svc.AddToCart(r.Context(), owner, productID, qty)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// RemoveFromCart handles DELETE /api/cart/{username}/remove?productId=1
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	owner, err := cartOwner(r)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	productID, ok := queryInt64(r, "productId")
	if !ok {
		writeErr(w, http.StatusBadRequest, "productId is required")
		return
	}
	items, err := h.svc.RemoveFromCart(r.Context(), owner, productID)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ClearCart handles DELETE /api/cart/{username}/clear
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	owner, err := cartOwner(r)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	if err := h.svc.ClearCart(r.Context(), owner); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Cart cleared"})
}

// Signup handles POST /api/auth/signup
// body: { "username": "...", "password": "..." }
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if _, err := h.svc.Signup(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeErr(w, http.StatusBadRequest, "username already exists")
			return
		}
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "User registered successfully"})
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeErr(w, http.StatusBadRequest, "username and password are required")
		return
	}
	out, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"storefront/events"
	"storefront/imagestore"
	"storefront/store"
)

// ErrValidation marks input rejected before any state is touched.
var ErrValidation = errors.New("validation failed")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Images binds and releases product images.
type Images interface {
	Bind(ctx context.Context, data []byte, meta imagestore.Meta) (string, error)
	Release(ctx context.Context, ref string) bool
}

// OrphanQueue receives image references whose release failed.
type OrphanQueue interface {
	EnqueueRelease(ctx context.Context, ref string) error
}

// TokenIssuer signs bearer tokens for logged in users.
type TokenIssuer interface {
	Issue(username string, roles []string) (string, error)
}

type Service struct {
	store   store.Store
	images  Images
	orphans OrphanQueue
	tokens  TokenIssuer
	now     func() time.Time
	log     *log.Logger
}

type Option func(*Service)

func WithImages(i Images) Option { return func(s *Service) { s.images = i } }

func WithOrphanQueue(q OrphanQueue) Option { return func(s *Service) { s.orphans = q } }

func WithTokens(t TokenIssuer) Option { return func(s *Service) { s.tokens = t } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l *log.Logger) Option { return func(s *Service) { s.log = l } }

var _ ServiceInterface = (*Service)(nil)

func NewService(s store.Store, opts ...Option) *Service {
	svc := &Service{store: s, now: time.Now}
	for _, o := range opts {
		o(svc)
	}
	if svc.log == nil {
		svc.log = log.Default()
	}
	if svc.orphans == nil {
		svc.orphans = events.Discard{Log: svc.log}
	}
	return svc
}

// DTOs
type ProductDTO struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Brand            string          `json:"brand"`
	Price            decimal.Decimal `json:"price"`
	Category         string          `json:"category"`
	CreatedAt        time.Time       `json:"createdAt"`
	Available        bool            `json:"available"`
	Quantity         int             `json:"quantity"`
	SellableQuantity int             `json:"sellableQuantity"`
	ImageURL         *string         `json:"imageUrl"`
}

// ProductInput carries the client-writable product fields.
type ProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Brand       string          `json:"brand"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Available   bool            `json:"available"`
	Quantity    int             `json:"quantity"`
	// ImageURL attaches an image stored earlier through UploadImage. An image file sent
	// with the request takes precedence.
	ImageURL    *string         `json:"imageUrl"`
}

// ImageUpload is an image file received with a product or on its own.
type ImageUpload struct {
	Data []byte
	Meta imagestore.Meta
}

type CartItemDTO struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL *string         `json:"imageUrl"`
	Quantity int             `json:"quantity"`
}

type UserDTO struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type LoginDTO struct {
	Token string   `json:"token"`
	Roles []string `json:"roles"`
}

func toProductDTO(r store.ProductRow) ProductDTO {
	p := ProductDTO{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Brand:       r.Brand,
		Price:       r.Price,
		Category:    r.Category,
		CreatedAt:   r.CreatedAt,
		Available:   r.Available,
		Quantity:    r.Quantity,
	}
	if r.Available {
		p.SellableQuantity = r.Quantity
	}
	if r.ImageURL.Valid {
		url := r.ImageURL.String
		p.ImageURL = &url
	}
	return p
}

func toProductDTOs(rows []store.ProductRow) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, toProductDTO(r))
	}
	return out
}

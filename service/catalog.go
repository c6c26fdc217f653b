package service

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	models "storefront/model"
	"storefront/store"
)

// maxPrice is the largest value a NUMERIC(12,2) column holds.
var maxPrice = decimal.RequireFromString("9999999999.99")

// maxQuantity is the largest value an INTEGER column holds.
const maxQuantity = math.MaxInt32

func (s *Service) ListProducts(ctx context.Context) ([]ProductDTO, error) {
	rows, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return toProductDTOs(rows), nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (ProductDTO, error) {
	if id <= 0 {
		return ProductDTO{}, invalid("product id must be positive")
	}
	row, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return ProductDTO{}, err
	}
	return toProductDTO(row), nil
}

// SearchProducts returns the whole catalog for a blank keyword.
func (s *Service) SearchProducts(ctx context.Context, keyword string) ([]ProductDTO, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return s.ListProducts(ctx)
	}
	rows, err := s.store.SearchProducts(ctx, keyword)
	if err != nil {
		return nil, err
	}
	return toProductDTOs(rows), nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput, img *ImageUpload) (ProductDTO, error) {
	row, err := s.productRow(in)
	if err != nil {
		return ProductDTO{}, err
	}
	row.CreatedAt = s.now().UTC().Truncate(time.Microsecond)

	ref, err := s.bind(ctx, img)
	if err != nil {
		return ProductDTO{}, err
	}
	row.ImageURL = nullString(ref)
	if ref == "" {
		row.ImageURL = nullString(attachedURL(in))
	}

	created, err := s.store.CreateProduct(ctx, row)
	if err != nil {
		s.release(ctx, ref)
		return ProductDTO{}, err
	}
	return toProductDTO(created), nil
}

// UpdateProduct overwrites the product's mutable fields. A new image, uploaded with the
// request or attached by URL, replaces the bound one, which is released only after the
// new reference is stored.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput, img *ImageUpload) (ProductDTO, error) {
	if id <= 0 {
		return ProductDTO{}, invalid("product id must be positive")
	}
	row, err := s.productRow(in)
	if err != nil {
		return ProductDTO{}, err
	}
	row.ID = id
	if !row.Available {
		row.Quantity = 0
	}

	ref, err := s.bind(ctx, img)
	if err != nil {
		return ProductDTO{}, err
	}
	row.ImageURL = nullString(ref)
	if ref == "" {
		row.ImageURL = nullString(attachedURL(in))
	}

	updated, previous, err := s.store.UpdateProduct(ctx, row)
	if err != nil {
		s.release(ctx, ref)
		return ProductDTO{}, err
	}
	if row.ImageURL.Valid && previous.Valid && previous.String != row.ImageURL.String {
		s.release(ctx, previous.String)
	}
	return toProductDTO(updated), nil
}

// DeleteProduct removes the product and the cart items naming it, then releases its image
// once. A failed release never fails the deletion.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if id <= 0 {
		return invalid("product id must be positive")
	}
	image, err := s.store.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}
	if image.Valid {
		s.release(ctx, image.String)
	}
	return nil
}

// UploadImage binds an image that is not yet attached to any product.
func (s *Service) UploadImage(ctx context.Context, img ImageUpload) (string, error) {
	return s.bind(ctx, &img)
}

func (s *Service) productRow(in ProductInput) (store.ProductRow, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.ProductRow{}, invalid("name required")
	}
	if in.Price.IsNegative() {
		return store.ProductRow{}, invalid("price must be >= 0")
	}
	if !in.Price.Equal(in.Price.Round(2)) {
		return store.ProductRow{}, invalid("price must have at most two decimal places")
	}
	if in.Price.GreaterThan(maxPrice) {
		return store.ProductRow{}, invalid("price must be <= %s", maxPrice)
	}
	if in.Quantity < 0 {
		return store.ProductRow{}, invalid("quantity must be >= 0")
	}
	if in.Quantity > maxQuantity {
		return store.ProductRow{}, invalid("quantity must be <= %d", maxQuantity)
	}
	category, err := models.ParseCategory(in.Category)
	if err != nil {
		return store.ProductRow{}, invalid("%v", err)
	}
	return store.ProductRow{
		Name:        name,
		Description: in.Description,
		Brand:       strings.TrimSpace(in.Brand),
		Price:       in.Price,
		Category:    category.String(),
		Available:   in.Available,
		Quantity:    in.Quantity,
	}, nil
}

// attachedURL is the previously uploaded image named by the input, or "".
func attachedURL(in ProductInput) string {
	if in.ImageURL == nil {
		return ""
	}
	return strings.TrimSpace(*in.ImageURL)
}

// bind returns "" when there is no image to store.
func (s *Service) bind(ctx context.Context, img *ImageUpload) (string, error) {
	if img == nil {
		return "", nil
	}
	if len(img.Data) == 0 {
		return "", invalid("image is empty")
	}
	if s.images == nil {
		return "", invalid("image uploads are not configured")
	}
	return s.images.Bind(ctx, img.Data, img.Meta)
}

// release makes exactly one release attempt and hands failures to the orphan queue.
func (s *Service) release(ctx context.Context, ref string) {
	if ref == "" || s.images == nil {
		return
	}
	if s.images.Release(ctx, ref) {
		return
	}
	if err := s.orphans.EnqueueRelease(ctx, ref); err != nil {
		s.log.Printf("service: image %s left orphaned: %v", ref, err)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

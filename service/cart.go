package service

import (
	"context"
	"strings"

	"storefront/store"
)

func cartUser(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", invalid("username required")
	}
	return username, nil
}

// GetCart lists the user's items with live product name, price and image.
func (s *Service) GetCart(ctx context.Context, username string) ([]CartItemDTO, error) {
	username, err := cartUser(username)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.GetCart(ctx, username)
	if err != nil {
		return nil, err
	}
	out := make([]CartItemDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, toCartItemDTO(r))
	}
	return out, nil
}

// AddToCart sets the item's quantity, replacing any previous one. Zero is rejected;
// removal goes through RemoveFromCart.
func (s *Service) AddToCart(ctx context.Context, username string, productID int64, qty int) ([]CartItemDTO, error) {
	username, err := cartUser(username)
	if err != nil {
		return nil, err
	}
	if productID <= 0 {
		return nil, invalid("product id must be positive")
	}
	if qty < 1 || qty > maxQuantity {
		return nil, invalid("quantity must be between 1 and %d", maxQuantity)
	}
	if err := s.store.UpsertCartItem(ctx, username, productID, qty); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, username)
}

func (s *Service) RemoveFromCart(ctx context.Context, username string, productID int64) ([]CartItemDTO, error) {
	username, err := cartUser(username)
	if err != nil {
		return nil, err
	}
	if productID <= 0 {
		return nil, invalid("product id must be positive")
	}
	if err := s.store.RemoveCartItem(ctx, username, productID); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, username)
}

func (s *Service) ClearCart(ctx context.Context, username string) error {
	username, err := cartUser(username)
	if err != nil {
		return err
	}
	return s.store.ClearCart(ctx, username)
}

func toCartItemDTO(r store.CartRow) CartItemDTO {
	c := CartItemDTO{ID: r.ProductID, Name: r.Name, Price: r.Price, Quantity: r.Quantity}
	if r.ImageURL.Valid {
		url := r.ImageURL.String
		c.ImageURL = &url
	}
	return c
}

package service

import (
	"context"
)

type ServiceInterface interface {
	ListProducts(ctx context.Context) ([]ProductDTO, error)
	GetProduct(ctx context.Context, id int64) (ProductDTO, error)
	SearchProducts(ctx context.Context, keyword string) ([]ProductDTO, error)
	CreateProduct(ctx context.Context, in ProductInput, img *ImageUpload) (ProductDTO, error)
	UpdateProduct(ctx context.Context, id int64, in ProductInput, img *ImageUpload) (ProductDTO, error)
	DeleteProduct(ctx context.Context, id int64) error
	UploadImage(ctx context.Context, img ImageUpload) (string, error)

	GetCart(ctx context.Context, username string) ([]CartItemDTO, error)
	AddToCart(ctx context.Context, username string, productID int64, qty int) ([]CartItemDTO, error)
	RemoveFromCart(ctx context.Context, username string, productID int64) ([]CartItemDTO, error)
	ClearCart(ctx context.Context, username string) error

	Signup(ctx context.Context, username, password string) (UserDTO, error)
	Login(ctx context.Context, username, password string) (LoginDTO, error)
}

package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	"github.com/Astemirdum/library-catalog/catalog/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go -package=mocks

type CatalogService interface {
	Summary(ctx context.Context, sessionID string) (model.Summary, error)
	ListBooks(ctx context.Context, page, size int) (model.ListBooks, error)
	GetBookDetail(ctx context.Context, id int64) (model.BookDetail, error)
	ListAuthors(ctx context.Context, page, size int) (model.ListAuthors, error)
	GetAuthorDetail(ctx context.Context, id int64) (model.AuthorDetail, error)
	ListLoansForUser(ctx context.Context, username string, page, size int) (model.ListBookInstances, error)
}

type AdminService interface {
	ListGenres(ctx context.Context) ([]model.Genre, error)
	CreateGenre(ctx context.Context, req model.CreateGenreRequest) (model.Genre, error)
	UpdateGenre(ctx context.Context, id int64, req model.CreateGenreRequest) (model.Genre, error)
	DeleteGenre(ctx context.Context, id int64) error

	CreateAuthor(ctx context.Context, req model.CreateAuthorRequest) (model.Author, error)
	UpdateAuthor(ctx context.Context, id int64, req model.CreateAuthorRequest) (model.Author, error)
	DeleteAuthor(ctx context.Context, id int64) error

	ListBooksAdmin(ctx context.Context, page, size int) (model.ListAdminBooks, error)
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, id int64, req model.CreateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, id int64) error

	GetInstance(ctx context.Context, id uuid.UUID) (model.BookInstance, error)
	ListInstances(ctx context.Context, filter model.InstanceFilter, page, size int) (model.ListBookInstances, error)
	CreateInstance(ctx context.Context, req model.CreateBookInstanceRequest) (model.BookInstance, error)
	UpdateInstance(ctx context.Context, id uuid.UUID, req model.UpdateBookInstanceRequest) (model.BookInstance, error)
	DeleteInstance(ctx context.Context, id uuid.UUID) error
}

var (
	_ CatalogService = (*service.Service)(nil)
	_ AdminService   = (*service.Service)(nil)
)

package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Astemirdum/library-catalog/catalog/internal/model"
)

func (s *Service) ListGenres(ctx context.Context) ([]model.Genre, error) {
	return s.repo.ListGenres(ctx)
}

func (s *Service) CreateGenre(ctx context.Context, req model.CreateGenreRequest) (model.Genre, error) {
	if err := checkLen("name", req.Name, s.limits.GenreName); err != nil {
		return model.Genre{}, err
	}
	return s.repo.CreateGenre(ctx, req.Name)
}

func (s *Service) UpdateGenre(ctx context.Context, id int64, req model.CreateGenreRequest) (model.Genre, error) {
	if err := checkLen("name", req.Name, s.limits.GenreName); err != nil {
		return model.Genre{}, err
	}
	return s.repo.UpdateGenre(ctx, id, req.Name)
}

func (s *Service) DeleteGenre(ctx context.Context, id int64) error {
	return s.repo.DeleteGenre(ctx, id)
}

func (s *Service) CreateAuthor(ctx context.Context, req model.CreateAuthorRequest) (model.Author, error) {
	if err := s.validateAuthor(req); err != nil {
		return model.Author{}, err
	}
	return s.repo.CreateAuthor(ctx, model.Author{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth.TimePtr(),
		DateOfDeath: req.DateOfDeath.TimePtr(),
	})
}

func (s *Service) UpdateAuthor(ctx context.Context, id int64, req model.CreateAuthorRequest) (model.Author, error) {
	if err := s.validateAuthor(req); err != nil {
		return model.Author{}, err
	}
	return s.repo.UpdateAuthor(ctx, model.Author{
		ID:          id,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth.TimePtr(),
		DateOfDeath: req.DateOfDeath.TimePtr(),
	})
}

func (s *Service) validateAuthor(req model.CreateAuthorRequest) error {
	if err := checkLen("firstName", req.FirstName, s.limits.AuthorFirstName); err != nil {
		return err
	}
	return checkLen("lastName", req.LastName, s.limits.AuthorLastName)
}

// DeleteAuthor never cascades: referencing books keep existing with a
// null author.
func (s *Service) DeleteAuthor(ctx context.Context, id int64) error {
	return s.repo.DeleteAuthor(ctx, id)
}

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	if err := s.validateBook(req); err != nil {
		return model.Book{}, err
	}
	return s.repo.CreateBook(ctx, model.Book{
		Title:    req.Title,
		AuthorID: req.AuthorID,
		Summary:  req.Summary,
		ISBN:     req.ISBN,
	}, req.GenreIDs)
}

func (s *Service) UpdateBook(ctx context.Context, id int64, req model.CreateBookRequest) (model.Book, error) {
	if err := s.validateBook(req); err != nil {
		return model.Book{}, err
	}
	return s.repo.UpdateBook(ctx, model.Book{
		ID:       id,
		Title:    req.Title,
		AuthorID: req.AuthorID,
		Summary:  req.Summary,
		ISBN:     req.ISBN,
	}, req.GenreIDs)
}

func (s *Service) validateBook(req model.CreateBookRequest) error {
	if err := checkLen("title", req.Title, s.limits.BookTitle); err != nil {
		return err
	}
	if err := checkLen("summary", req.Summary, s.limits.BookSummary); err != nil {
		return err
	}
	return checkLen("isbn", req.ISBN, s.limits.BookISBN)
}

func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	return s.repo.DeleteBook(ctx, id)
}

// ListBooksAdmin builds the admin book list rows: title, author label
// and the first three genre names joined for display.
func (s *Service) ListBooksAdmin(ctx context.Context, page, size int) (model.ListAdminBooks, error) {
	lst, err := s.repo.ListBooks(ctx, page, size)
	if err != nil {
		return model.ListAdminBooks{}, err
	}

	bookIDs := make([]int64, 0, len(lst.Items))
	authorIDs := make([]int64, 0, len(lst.Items))
	for _, b := range lst.Items {
		bookIDs = append(bookIDs, b.ID)
		if b.AuthorID != nil {
			authorIDs = append(authorIDs, *b.AuthorID)
		}
	}

	genres, err := s.repo.GenresForBooks(ctx, bookIDs)
	if err != nil {
		return model.ListAdminBooks{}, err
	}
	authors, err := s.repo.AuthorLabels(ctx, authorIDs)
	if err != nil {
		return model.ListAdminBooks{}, err
	}

	rows := make([]model.AdminBookRow, 0, len(lst.Items))
	for _, b := range lst.Items {
		row := model.AdminBookRow{
			ID:    b.ID,
			Title: b.Title,
			Genre: model.DisplayGenre(genres[b.ID]),
		}
		if b.AuthorID != nil {
			row.Author = authors[*b.AuthorID]
		}
		rows = append(rows, row)
	}

	return model.ListAdminBooks{Paging: lst.Paging, Items: rows}, nil
}

func (s *Service) GetInstance(ctx context.Context, id uuid.UUID) (model.BookInstance, error) {
	return s.repo.GetInstance(ctx, id)
}

func (s *Service) ListInstances(ctx context.Context, filter model.InstanceFilter, page, size int) (model.ListBookInstances, error) {
	return s.repo.ListInstances(ctx, filter, page, size)
}

func (s *Service) CreateInstance(ctx context.Context, req model.CreateBookInstanceRequest) (model.BookInstance, error) {
	if err := checkLen("imprint", req.Imprint, s.limits.BookInstanceImprint); err != nil {
		return model.BookInstance{}, err
	}
	status := req.Status
	if status == "" {
		status = model.StatusMaintenance
	}
	return s.repo.CreateInstance(ctx, model.BookInstance{
		BookID:   req.BookID,
		Imprint:  req.Imprint,
		DueBack:  req.DueBack.TimePtr(),
		Status:   status,
		Borrower: req.Borrower,
	})
}

func (s *Service) UpdateInstance(ctx context.Context, id uuid.UUID, req model.UpdateBookInstanceRequest) (model.BookInstance, error) {
	if err := checkLen("imprint", req.Identity.Imprint, s.limits.BookInstanceImprint); err != nil {
		return model.BookInstance{}, err
	}
	return s.repo.UpdateInstance(ctx, model.BookInstance{
		ID:       id,
		BookID:   req.Identity.BookID,
		Imprint:  req.Identity.Imprint,
		DueBack:  req.Availability.DueBack.TimePtr(),
		Status:   req.Availability.Status,
		Borrower: req.Availability.Borrower,
	})
}

func (s *Service) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteInstance(ctx, id)
}

package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/library-catalog/catalog/config"
	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	catalogRepo "github.com/Astemirdum/library-catalog/catalog/internal/repository"
	"github.com/Astemirdum/library-catalog/catalog/internal/session"
)

type Service struct {
	log      *zap.Logger
	repo     catalogRepo.Repository
	sessions session.Store
	limits   config.Limits
}

func NewService(repo catalogRepo.Repository, sessions session.Store, limits config.Limits, log *zap.Logger) *Service {
	return &Service{
		log:      log,
		repo:     repo,
		sessions: sessions,
		limits:   limits,
	}
}

// Summary fans the four count queries out concurrently and bumps the
// session visit counter. The counter value is per session, so the read
// sequence for one visitor is N, N+1, ...
func (s *Service) Summary(ctx context.Context, sessionID string) (model.Summary, error) {
	var sum model.Summary

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sum.NumBooks, err = s.repo.CountBooks(ctx)
		return err
	})
	g.Go(func() (err error) {
		sum.NumInstances, err = s.repo.CountInstances(ctx)
		return err
	})
	g.Go(func() (err error) {
		sum.NumInstancesAvailable, err = s.repo.CountInstancesByStatus(ctx, model.StatusAvailable)
		return err
	})
	g.Go(func() (err error) {
		sum.NumAuthors, err = s.repo.CountAuthors(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Summary{}, err
	}

	visits, err := s.sessions.IncrVisits(ctx, sessionID)
	if err != nil {
		return model.Summary{}, err
	}
	sum.NumVisits = visits

	return sum, nil
}

func (s *Service) ListBooks(ctx context.Context, page, size int) (model.ListBooks, error) {
	return s.repo.ListBooks(ctx, page, size)
}

// GetBookDetail assembles the detail display bundle: the book, every
// genre name in insertion order, all copies, and the author link.
// A book without an author gets the "#" placeholder; that is the only
// fallback, storage errors still propagate.
func (s *Service) GetBookDetail(ctx context.Context, id int64) (model.BookDetail, error) {
	book, err := s.repo.GetBook(ctx, id)
	if err != nil {
		return model.BookDetail{}, err
	}

	copies, err := s.repo.InstancesByBook(ctx, book.ID)
	if err != nil {
		return model.BookDetail{}, err
	}

	genres := make([]string, 0, len(book.Genres))
	for _, g := range book.Genres {
		genres = append(genres, g.Name)
	}

	return model.BookDetail{
		Book:      book,
		Genres:    genres,
		Copies:    copies,
		AuthorURL: authorURL(book.AuthorID),
	}, nil
}

func authorURL(authorID *int64) string {
	if authorID == nil {
		return "#"
	}
	return fmt.Sprintf("/api/v1/authors/%d", *authorID)
}

func (s *Service) ListAuthors(ctx context.Context, page, size int) (model.ListAuthors, error) {
	return s.repo.ListAuthors(ctx, page, size)
}

func (s *Service) GetAuthorDetail(ctx context.Context, id int64) (model.AuthorDetail, error) {
	author, err := s.repo.GetAuthor(ctx, id)
	if err != nil {
		return model.AuthorDetail{}, err
	}
	books, err := s.repo.BooksByAuthor(ctx, author.ID)
	if err != nil {
		return model.AuthorDetail{}, err
	}
	return model.AuthorDetail{Author: author, Books: books}, nil
}

func (s *Service) ListLoansForUser(ctx context.Context, username string, page, size int) (model.ListBookInstances, error) {
	if username == "" {
		return model.ListBookInstances{}, errs.ErrUnauthorized
	}
	return s.repo.ListLoansForUser(ctx, username, page, size)
}

func checkLen(field, value string, max int) error {
	if n := utf8.RuneCountInString(value); n > max {
		return errs.NewValidationError(field, max, n)
	}
	return nil
}

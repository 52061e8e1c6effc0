package service

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/catalog/config"
	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	"github.com/Astemirdum/library-catalog/catalog/internal/repository"
)

// repoStub embeds the interface so each test overrides only the calls
// it expects to see.
type repoStub struct {
	repository.Repository

	countBooks     func(ctx context.Context) (int, error)
	countInstances func(ctx context.Context) (int, error)
	countByStatus  func(ctx context.Context, status model.Status) (int, error)
	countAuthors   func(ctx context.Context) (int, error)

	getBook         func(ctx context.Context, id int64) (model.Book, error)
	instancesByBook func(ctx context.Context, bookID int64) ([]model.BookInstance, error)
	listBooks       func(ctx context.Context, page, size int) (model.ListBooks, error)
	genresForBooks  func(ctx context.Context, bookIDs []int64) (map[int64][]model.Genre, error)
	authorLabels    func(ctx context.Context, authorIDs []int64) (map[int64]string, error)
	loansForUser    func(ctx context.Context, username string, page, size int) (model.ListBookInstances, error)
}

func (r *repoStub) CountBooks(ctx context.Context) (int, error)     { return r.countBooks(ctx) }
func (r *repoStub) CountInstances(ctx context.Context) (int, error) { return r.countInstances(ctx) }
func (r *repoStub) CountInstancesByStatus(ctx context.Context, status model.Status) (int, error) {
	return r.countByStatus(ctx, status)
}
func (r *repoStub) CountAuthors(ctx context.Context) (int, error) { return r.countAuthors(ctx) }
func (r *repoStub) GetBook(ctx context.Context, id int64) (model.Book, error) {
	return r.getBook(ctx, id)
}
func (r *repoStub) InstancesByBook(ctx context.Context, bookID int64) ([]model.BookInstance, error) {
	return r.instancesByBook(ctx, bookID)
}
func (r *repoStub) ListBooks(ctx context.Context, page, size int) (model.ListBooks, error) {
	return r.listBooks(ctx, page, size)
}
func (r *repoStub) GenresForBooks(ctx context.Context, bookIDs []int64) (map[int64][]model.Genre, error) {
	return r.genresForBooks(ctx, bookIDs)
}
func (r *repoStub) AuthorLabels(ctx context.Context, authorIDs []int64) (map[int64]string, error) {
	return r.authorLabels(ctx, authorIDs)
}
func (r *repoStub) ListLoansForUser(ctx context.Context, username string, page, size int) (model.ListBookInstances, error) {
	return r.loansForUser(ctx, username, page, size)
}

type sessionStub struct {
	visits map[string]int64
}

func (s *sessionStub) IncrVisits(_ context.Context, sessionID string) (int64, error) {
	if s.visits == nil {
		s.visits = map[string]int64{}
	}
	s.visits[sessionID]++
	return s.visits[sessionID], nil
}

func testLimits() config.Limits {
	return config.Limits{
		BookTitle:           200,
		BookSummary:         1000,
		BookISBN:            13,
		AuthorFirstName:     100,
		AuthorLastName:      100,
		BookInstanceImprint: 200,
		GenreName:           200,
	}
}

func TestService_Summary(t *testing.T) {
	t.Parallel()
	repo := &repoStub{
		countBooks:     func(context.Context) (int, error) { return 5, nil },
		countInstances: func(context.Context) (int, error) { return 12, nil },
		countByStatus: func(_ context.Context, status model.Status) (int, error) {
			require.Equal(t, model.StatusAvailable, status)
			return 3, nil
		},
		countAuthors: func(context.Context) (int, error) { return 2, nil },
	}
	sessions := &sessionStub{}
	svc := NewService(repo, sessions, testLimits(), zap.NewNop())

	// same session twice: the visit counter reads N then N+1
	sum, err := svc.Summary(context.Background(), "sid-1")
	require.NoError(t, err)
	require.Equal(t, model.Summary{
		NumBooks:              5,
		NumInstances:          12,
		NumInstancesAvailable: 3,
		NumAuthors:            2,
		NumVisits:             1,
	}, sum)

	sum, err = svc.Summary(context.Background(), "sid-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, sum.NumVisits)

	// a different session starts its own sequence
	sum, err = svc.Summary(context.Background(), "sid-2")
	require.NoError(t, err)
	require.EqualValues(t, 1, sum.NumVisits)
}

func TestService_Summary_CountError(t *testing.T) {
	t.Parallel()
	repo := &repoStub{
		countBooks:     func(context.Context) (int, error) { return 0, errors.New("boom") },
		countInstances: func(context.Context) (int, error) { return 12, nil },
		countByStatus:  func(context.Context, model.Status) (int, error) { return 3, nil },
		countAuthors:   func(context.Context) (int, error) { return 2, nil },
	}
	sessions := &sessionStub{}
	svc := NewService(repo, sessions, testLimits(), zap.NewNop())

	_, err := svc.Summary(context.Background(), "sid-1")
	require.Error(t, err)
	// a failed summary must not consume a visit
	require.Empty(t, sessions.visits)
}

func TestService_GetBookDetail(t *testing.T) {
	t.Parallel()
	authorID := int64(7)

	tests := []struct {
		name       string
		book       model.Book
		wantURL    string
		wantGenres []string
	}{
		{
			name: "author link resolved",
			book: model.Book{
				ID:       1,
				Title:    "Dune",
				AuthorID: &authorID,
				Genres:   []model.Genre{{ID: 1, Name: "SciFi"}, {ID: 2, Name: "Drama"}},
			},
			wantURL:    "/api/v1/authors/7",
			wantGenres: []string{"SciFi", "Drama"},
		},
		{
			name:       "no author falls back to placeholder",
			book:       model.Book{ID: 2, Title: "Beowulf"},
			wantURL:    "#",
			wantGenres: []string{},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := &repoStub{
				getBook: func(_ context.Context, id int64) (model.Book, error) {
					require.Equal(t, tt.book.ID, id)
					return tt.book, nil
				},
				instancesByBook: func(_ context.Context, bookID int64) ([]model.BookInstance, error) {
					require.Equal(t, tt.book.ID, bookID)
					return []model.BookInstance{}, nil
				},
			}
			svc := NewService(repo, &sessionStub{}, testLimits(), zap.NewNop())

			detail, err := svc.GetBookDetail(context.Background(), tt.book.ID)
			require.NoError(t, err)
			require.Equal(t, tt.wantURL, detail.AuthorURL)
			require.Equal(t, tt.wantGenres, detail.Genres)
		})
	}
}

func TestService_GetBookDetail_StorageErrorPropagates(t *testing.T) {
	t.Parallel()
	repo := &repoStub{
		getBook: func(context.Context, int64) (model.Book, error) {
			return model.Book{}, errs.ErrStorageUnavailable
		},
	}
	svc := NewService(repo, &sessionStub{}, testLimits(), zap.NewNop())

	_, err := svc.GetBookDetail(context.Background(), 1)
	require.ErrorIs(t, err, errs.ErrStorageUnavailable)
}

func TestService_ListLoansForUser_RequiresIdentity(t *testing.T) {
	t.Parallel()
	svc := NewService(&repoStub{}, &sessionStub{}, testLimits(), zap.NewNop())

	_, err := svc.ListLoansForUser(context.Background(), "", 1, 10)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestService_ListBooksAdmin(t *testing.T) {
	t.Parallel()
	authorID := int64(7)
	repo := &repoStub{
		listBooks: func(_ context.Context, page, size int) (model.ListBooks, error) {
			return model.ListBooks{
				Paging: model.Paging{Page: page, PageSize: size, TotalElements: 2},
				Items: []model.Book{
					{ID: 1, Title: "Dune", AuthorID: &authorID},
					{ID: 2, Title: "Beowulf"},
				},
			}, nil
		},
		genresForBooks: func(_ context.Context, bookIDs []int64) (map[int64][]model.Genre, error) {
			require.Equal(t, []int64{1, 2}, bookIDs)
			return map[int64][]model.Genre{
				1: {{Name: "SciFi"}, {Name: "Horror"}, {Name: "Drama"}, {Name: "Comedy"}},
			}, nil
		},
		authorLabels: func(_ context.Context, authorIDs []int64) (map[int64]string, error) {
			require.Equal(t, []int64{7}, authorIDs)
			return map[int64]string{7: "Herbert, Frank"}, nil
		},
	}
	svc := NewService(repo, &sessionStub{}, testLimits(), zap.NewNop())

	lst, err := svc.ListBooksAdmin(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, 2, lst.TotalElements)
	require.Equal(t, []model.AdminBookRow{
		{ID: 1, Title: "Dune", Author: "Herbert, Frank", Genre: "SciFi,Horror,Drama"},
		{ID: 2, Title: "Beowulf", Author: "", Genre: ""},
	}, lst.Items)
}

func TestService_LengthLimits(t *testing.T) {
	t.Parallel()
	limits := testLimits()
	limits.GenreName = 5
	limits.BookISBN = 13
	svc := NewService(&repoStub{}, &sessionStub{}, limits, zap.NewNop())

	_, err := svc.CreateGenre(context.Background(), model.CreateGenreRequest{Name: "Fantastika"})
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "name", ve.Field)
	require.Equal(t, 5, ve.Max)
	require.Equal(t, 10, ve.Len)

	_, err = svc.CreateBook(context.Background(), model.CreateBookRequest{
		Title: "Dune",
		ISBN:  "97804411727190000",
	})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "isbn", ve.Field)
}

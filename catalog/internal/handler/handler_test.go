package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/catalog/config"
	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	"github.com/Astemirdum/library-catalog/catalog/internal/handler"
	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	md "github.com/Astemirdum/library-catalog/pkg/middleware"
	"github.com/Astemirdum/library-catalog/pkg/validate"

	service_mocks "github.com/Astemirdum/library-catalog/catalog/internal/handler/mocks"
)

func newTestHandler(t *testing.T) (*handler.Handler, *service_mocks.MockCatalogService, *service_mocks.MockAdminService, *echo.Echo) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	catalogSvc := service_mocks.NewMockCatalogService(c)
	adminSvc := service_mocks.NewMockAdminService(c)
	log := zap.NewExample().Named("test")
	h := handler.New(catalogSvc, adminSvc, config.Config{PageSize: 10}, log)

	e := echo.New()
	e.Validator = validate.NewCustomValidator()
	return h, catalogSvc, adminSvc, e
}

func bearerToken(t *testing.T, username, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Profile: auth.Profile{Username: username, Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(auth.JWTKey)
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestHandler_Home(t *testing.T) {
	t.Parallel()
	h, catalogSvc, _, e := newTestHandler(t)
	e.GET("/", h.Home)

	catalogSvc.EXPECT().
		Summary(gomock.Any(), gomock.Any()).
		Return(model.Summary{
			NumBooks:              5,
			NumInstances:          12,
			NumInstancesAvailable: 3,
			NumAuthors:            2,
			NumVisits:             7,
		}, nil)

	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t,
		`{"numBooks":5,"numInstances":12,"numInstancesAvailable":3,"numAuthors":2,"numVisits":7}`,
		strings.Trim(w.Body.String(), "\n"))

	// a fresh session gets a cookie minted
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.NotEmpty(t, cookies[0].Value)
}

func TestHandler_ListBooks(t *testing.T) {
	t.Parallel()
	type input struct {
		query string
		page  int
		size  int
	}
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockCatalogService, inp input)

	authorID := int64(1)

	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		input        input
		response     response
	}{
		{
			name: "ok. defaults",
			mockBehavior: func(r *service_mocks.MockCatalogService, inp input) {
				r.EXPECT().
					ListBooks(gomock.Any(), inp.page, inp.size).
					Return(model.ListBooks{
						Paging: model.Paging{Page: 1, PageSize: 10, TotalElements: 25},
						Items: []model.Book{
							{ID: 1, Title: "Dune", AuthorID: &authorID, Summary: "spice", ISBN: "9780441172719"},
							{ID: 2, Title: "Roadside Picnic", Summary: "the zone", ISBN: "9781613743416"},
						},
					}, nil)
			},
			input: input{query: "", page: 1, size: 10},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"page":1,"pageSize":10,"totalElements":25,"items":[{"id":1,"title":"Dune","authorId":1,"summary":"spice","isbn":"9780441172719"},{"id":2,"title":"Roadside Picnic","authorId":null,"summary":"the zone","isbn":"9781613743416"}]}`,
			},
		},
		{
			name: "ok. explicit page",
			mockBehavior: func(r *service_mocks.MockCatalogService, inp input) {
				r.EXPECT().
					ListBooks(gomock.Any(), inp.page, inp.size).
					Return(model.ListBooks{
						Paging: model.Paging{Page: 3, PageSize: 10, TotalElements: 25},
						Items:  []model.Book{{ID: 21, Title: "Solaris", ISBN: "9780156027601"}},
					}, nil)
			},
			input: input{query: "?page=3&size=10", page: 3, size: 10},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"page":3,"pageSize":10,"totalElements":25,"items":[{"id":21,"title":"Solaris","authorId":null,"summary":"","isbn":"9780156027601"}]}`,
			},
		},
		{
			name:         "err. bad page",
			mockBehavior: func(r *service_mocks.MockCatalogService, inp input) {},
			input:        input{query: "?page=zero"},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"page is invalid"}`,
			},
		},
		{
			name: "err. internal",
			mockBehavior: func(r *service_mocks.MockCatalogService, inp input) {
				r.EXPECT().
					ListBooks(gomock.Any(), inp.page, inp.size).
					Return(model.ListBooks{}, errors.New("db internal"))
			},
			input: input{query: "", page: 1, size: 10},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"message":"db internal"}`,
			},
		},
		{
			name: "err. storage unavailable",
			mockBehavior: func(r *service_mocks.MockCatalogService, inp input) {
				r.EXPECT().
					ListBooks(gomock.Any(), inp.page, inp.size).
					Return(model.ListBooks{}, errs.ErrStorageUnavailable)
			},
			input: input{query: "", page: 1, size: 10},
			response: response{
				expectedCode: http.StatusServiceUnavailable,
				expectedBody: `{"message":"storage unavailable"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, catalogSvc, _, e := newTestHandler(t)
			e.GET("/books", h.ListBooks)

			tt.mockBehavior(catalogSvc, tt.input)

			r := httptest.NewRequest(http.MethodGet, "/books"+tt.input.query, http.NoBody)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_GetBook(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockCatalogService)

	var tests = []struct {
		name         string
		id           string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok. no author gets placeholder link",
			id:   "1",
			mockBehavior: func(r *service_mocks.MockCatalogService) {
				r.EXPECT().
					GetBookDetail(gomock.Any(), int64(1)).
					Return(model.BookDetail{
						Book:      model.Book{ID: 1, Title: "Dune", Summary: "spice", ISBN: "9780441172719"},
						Genres:    []string{"SciFi", "Horror", "Drama", "Comedy"},
						Copies:    []model.BookInstance{},
						AuthorURL: "#",
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"book":{"id":1,"title":"Dune","authorId":null,"summary":"spice","isbn":"9780441172719"},"genres":["SciFi","Horror","Drama","Comedy"],"bookCopies":[],"authorUrl":"#"}`,
			},
		},
		{
			name: "err. not found",
			id:   "42",
			mockBehavior: func(r *service_mocks.MockCatalogService) {
				r.EXPECT().
					GetBookDetail(gomock.Any(), int64(42)).
					Return(model.BookDetail{}, errs.ErrNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"not found"}`,
			},
		},
		{
			name:         "err. bad id",
			id:           "abc",
			mockBehavior: func(r *service_mocks.MockCatalogService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"id is invalid"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, catalogSvc, _, e := newTestHandler(t)
			e.GET("/books/:id", h.GetBook)

			tt.mockBehavior(catalogSvc)

			r := httptest.NewRequest(http.MethodGet, "/books/"+tt.id, http.NoBody)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_MyBooks(t *testing.T) {
	t.Parallel()

	t.Run("err. anonymous is sent to login", func(t *testing.T) {
		t.Parallel()
		h, _, _, e := newTestHandler(t)
		e.GET("/my/books", h.MyBooks, md.JwtAuthentication)

		r := httptest.NewRequest(http.MethodGet, "/my/books", http.NoBody)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Equal(t, md.LoginPath, w.Header().Get(echo.HeaderLocation))
	})

	t.Run("ok. own loans only", func(t *testing.T) {
		t.Parallel()
		h, catalogSvc, _, e := newTestHandler(t)
		e.GET("/my/books", h.MyBooks, md.JwtAuthentication)

		due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		borrower := "reader1"
		catalogSvc.EXPECT().
			ListLoansForUser(gomock.Any(), "reader1", 1, 10).
			Return(model.ListBookInstances{
				Paging: model.Paging{Page: 1, PageSize: 10, TotalElements: 1},
				Items: []model.BookInstance{
					{
						ID:        uuid.MustParse("f7cdc58f-2caf-4b15-9727-f89dcc629b27"),
						BookID:    1,
						BookTitle: "Dune",
						Imprint:   "Ace, 1990",
						DueBack:   &due,
						Status:    model.StatusOnLoan,
						Borrower:  &borrower,
					},
				},
			}, nil)

		r := httptest.NewRequest(http.MethodGet, "/my/books", http.NoBody)
		r.Header.Set("Authorization", bearerToken(t, "reader1", auth.RoleReader))
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t,
			`{"page":1,"pageSize":10,"totalElements":1,"items":[{"id":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","bookId":1,"bookTitle":"Dune","imprint":"Ace, 1990","dueBack":"2024-05-01T00:00:00Z","status":"o","borrower":"reader1"}]}`,
			strings.Trim(w.Body.String(), "\n"))
	})

	t.Run("err. expired token", func(t *testing.T) {
		t.Parallel()
		h, _, _, e := newTestHandler(t)
		e.GET("/my/books", h.MyBooks, md.JwtAuthentication)

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
			Profile: auth.Profile{Username: "reader1", Role: auth.RoleReader},
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		signed, err := token.SignedString(auth.JWTKey)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/my/books", http.NoBody)
		r.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

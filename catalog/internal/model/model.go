package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the availability of a single book copy. It is a plain
// enumeration: no transition rules are enforced anywhere.
type Status string

const (
	StatusMaintenance Status = "m"
	StatusOnLoan      Status = "o"
	StatusAvailable   Status = "a"
	StatusReserved    Status = "r"
)

func (s Status) Valid() bool {
	switch s {
	case StatusMaintenance, StatusOnLoan, StatusAvailable, StatusReserved:
		return true
	}
	return false
}

func (s Status) DisplayName() string {
	switch s {
	case StatusMaintenance:
		return "Maintenance"
	case StatusOnLoan:
		return "On loan"
	case StatusAvailable:
		return "Available"
	case StatusReserved:
		return "Reserved"
	}
	return string(s)
}

type Genre struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

func (g Genre) Label() string { return g.Name }

type Author struct {
	ID          int64      `json:"id" db:"id"`
	FirstName   string     `json:"firstName" db:"first_name"`
	LastName    string     `json:"lastName" db:"last_name"`
	DateOfBirth *time.Time `json:"dateOfBirth" db:"date_of_birth"`
	DateOfDeath *time.Time `json:"dateOfDeath" db:"date_of_death"`
}

func (a Author) Label() string {
	return fmt.Sprintf("%s, %s", a.LastName, a.FirstName)
}

type Book struct {
	ID       int64   `json:"id" db:"id"`
	Title    string  `json:"title" db:"title"`
	AuthorID *int64  `json:"authorId" db:"author_id"`
	Summary  string  `json:"summary" db:"summary"`
	ISBN     string  `json:"isbn" db:"isbn"`
	Genres   []Genre `json:"genres,omitempty" db:"-"`
}

func (b Book) Label() string { return b.Title }

// DisplayGenre joins the first three genre names for admin list rows,
// comma-separated without spaces.
func DisplayGenre(genres []Genre) string {
	names := make([]string, 0, 3)
	for _, g := range genres {
		if len(names) == 3 {
			break
		}
		names = append(names, g.Name)
	}
	return strings.Join(names, ",")
}

type BookInstance struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	BookID    int64      `json:"bookId" db:"book_id"`
	BookTitle string     `json:"bookTitle,omitempty" db:"book_title"`
	Imprint   string     `json:"imprint" db:"imprint"`
	DueBack   *time.Time `json:"dueBack" db:"due_back"`
	Status    Status     `json:"status" db:"status"`
	Borrower  *string    `json:"borrower" db:"borrower"`
}

func (bi BookInstance) Label() string {
	return fmt.Sprintf("%s (%s)", bi.ID, bi.BookTitle)
}

// IsOverdue reports whether the copy is still out past its due date.
// Derived on every access, never stored.
func (bi BookInstance) IsOverdue() bool {
	return bi.overdueAt(time.Now())
}

func (bi BookInstance) overdueAt(now time.Time) bool {
	if bi.DueBack == nil {
		return false
	}
	dy, dm, dd := bi.DueBack.Date()
	ny, nm, nd := now.Date()
	due := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return due.Before(today)
}

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type ListBooks struct {
	Paging `json:",inline"`
	Items  []Book `json:"items"`
}

type ListAuthors struct {
	Paging `json:",inline"`
	Items  []Author `json:"items"`
}

type ListBookInstances struct {
	Paging `json:",inline"`
	Items  []BookInstance `json:"items"`
}

type ListAdminBooks struct {
	Paging `json:",inline"`
	Items  []AdminBookRow `json:"items"`
}

// AdminBookRow mirrors the admin book list columns: title, author label
// and the joined genre display string.
type AdminBookRow struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
}

// Summary is the home page context: entity counts plus the per-session
// visit counter.
type Summary struct {
	NumBooks              int   `json:"numBooks"`
	NumInstances          int   `json:"numInstances"`
	NumInstancesAvailable int   `json:"numInstancesAvailable"`
	NumAuthors            int   `json:"numAuthors"`
	NumVisits             int64 `json:"numVisits"`
}

// BookDetail is the display bundle for a book detail page. AuthorURL is
// the author detail link, or "#" when the book has no author.
type BookDetail struct {
	Book      Book           `json:"book"`
	Genres    []string       `json:"genres"`
	Copies    []BookInstance `json:"bookCopies"`
	AuthorURL string         `json:"authorUrl"`
}

type AuthorDetail struct {
	Author Author `json:"author"`
	Books  []Book `json:"books"`
}

package model

import (
	"strings"
	"time"
)

// Date accepts bare YYYY-MM-DD values in request payloads.
type Date struct {
	time.Time `json:",inline"`
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}

func (d *Date) TimePtr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

type CreateGenreRequest struct {
	Name string `json:"name" validate:"required"`
}

type CreateAuthorRequest struct {
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	DateOfBirth *Date  `json:"dateOfBirth"`
	DateOfDeath *Date  `json:"dateOfDeath"`
}

type CreateBookRequest struct {
	Title    string  `json:"title" validate:"required"`
	AuthorID *int64  `json:"authorId"`
	Summary  string  `json:"summary"`
	ISBN     string  `json:"isbn" validate:"required"`
	GenreIDs []int64 `json:"genreIds"`
}

type CreateBookInstanceRequest struct {
	BookID   int64   `json:"bookId" validate:"required"`
	Imprint  string  `json:"imprint" validate:"required"`
	Status   Status  `json:"status" validate:"omitempty,oneof=m o a r"`
	DueBack  *Date   `json:"dueBack"`
	Borrower *string `json:"borrower"`
}

// UpdateBookInstanceRequest mirrors the grouped edit form: identity
// fields and availability fields travel in separate sections.
type UpdateBookInstanceRequest struct {
	Identity struct {
		BookID  int64  `json:"bookId" validate:"required"`
		Imprint string `json:"imprint" validate:"required"`
	} `json:"identity"`
	Availability struct {
		Status   Status  `json:"status" validate:"required,oneof=m o a r"`
		DueBack  *Date   `json:"dueBack"`
		Borrower *string `json:"borrower"`
	} `json:"availability"`
}

// InstanceFilter narrows the admin copy list, matching the original's
// status and due-date list filters.
type InstanceFilter struct {
	Status    Status
	DueBefore *time.Time
}

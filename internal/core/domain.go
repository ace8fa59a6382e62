package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Group is a named, ordered top-level taxonomy node. DisplayOrder is a
	// dense zero-based rank among all groups.
	Group struct {
		ID           int64
		Name         string
		DisplayOrder int
	}

	// Item is a receipt type. It belongs to exactly one container: a group,
	// or the implicit ungrouped bucket. DisplayOrder is a dense zero-based
	// rank within that container.
	Item struct {
		ID           int64
		Name         string
		Container    ContainerKey
		DisplayOrder int
	}

	// Receipt is a captured expense record classified by a receipt type.
	Receipt struct {
		ID          int64
		Date        Date
		Description string
		Amount      Money
		TypeID      int64
	}
)

// ContainerKey identifies the container an item lives in: either a group or
// the ungrouped bucket. The zero value is the ungrouped sentinel, so the key
// can never collide with a real group id and comparisons stay total.
type ContainerKey struct {
	groupID int64
	grouped bool
}

// Ungrouped is the container key of the implicit ungrouped bucket.
var Ungrouped = ContainerKey{}

// GroupKey returns the container key for the group with the given id.
func GroupKey(id int64) ContainerKey {
	return ContainerKey{groupID: id, grouped: true}
}

// IsGroup reports whether the key refers to a real group.
func (k ContainerKey) IsGroup() bool { return k.grouped }

// GroupID returns the group id and true when the key refers to a group.
func (k ContainerKey) GroupID() (int64, bool) { return k.groupID, k.grouped }

func (k ContainerKey) String() string {
	if !k.grouped {
		return "ungrouped"
	}
	return fmt.Sprintf("group:%d", k.groupID)
}

var (
	ErrEmptyName        = errors.New("empty name")
	ErrNameTooLong      = errors.New("name too long (max 100 characters)")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrUnknownType      = errors.New("unknown receipt type")
)

func validateName(name string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return ErrNameTooLong
	}
	return nil
}

func (g Group) Validate() error {
	if err := validateName(g.Name); err != nil {
		return err
	}
	if g.DisplayOrder < 0 {
		return fmt.Errorf("negative display order %d", g.DisplayOrder)
	}
	return nil
}

func (it Item) Validate() error {
	if err := validateName(it.Name); err != nil {
		return err
	}
	if it.DisplayOrder < 0 {
		return fmt.Errorf("negative display order %d", it.DisplayOrder)
	}
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r Receipt) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if r.TypeID <= 0 {
		return ErrUnknownType
	}
	return nil
}

package core

import (
	"strconv"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Page describes one page of a paginated listing.
type Page struct {
	Number      int  `json:"number"`
	Size        int  `json:"size"`
	Total       int  `json:"total"`
	NumPages    int  `json:"num_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPage clamps number into [1, NumPages]; an empty listing still has one (empty) page.
func NewPage(number, size, total int) Page {
	if size <= 0 {
		size = 10
	}
	numPages := (total + size - 1) / size
	if numPages < 1 {
		numPages = 1
	}
	if number < 1 {
		number = 1
	} else if number > numPages {
		number = numPages
	}
	return Page{
		Number:      number,
		Size:        size,
		Total:       total,
		NumPages:    numPages,
		HasNext:     number < numPages,
		HasPrevious: number > 1,
	}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ParsePageNumber returns 1 for anything that is not a positive integer.
func ParsePageNumber(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

package utils

import (
	"github.com/gofiber/fiber/v2"
)

// Trade history and the transaction journal are listed newest first in pages
// of DefaultPageSize rows unless the client asks for another size.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is the window of a history listing as echoed back to the client.
type Page struct {
	Number   int   `json:"page"`
	Size     int   `json:"limit"`
	Total    int64 `json:"total"`
	LastPage int   `json:"last_page"`
}

// PageFromQuery reads ?page=&limit=. Missing or non-positive values fall back
// to the first page; sizes above MaxPageSize are clamped.
func PageFromQuery(c *fiber.Ctx) Page {
	p := Page{Number: c.QueryInt("page", 1), Size: c.QueryInt("limit", DefaultPageSize)}
	if p.Number < 1 {
		p.Number = 1
	}
	switch {
	case p.Size < 1:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	return p
}

// Offset is the number of rows before this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Listing is the body of a paged history response.
type Listing struct {
	Data       interface{} `json:"data"`
	Pagination Page        `json:"pagination"`
}

// NewListing stamps the match count on p. An empty result still has one page.
func NewListing(data interface{}, p Page, total int64) Listing {
	p.Total = total
	p.LastPage = int((total + int64(p.Size) - 1) / int64(p.Size))
	if p.LastPage < 1 {
		p.LastPage = 1
	}
	return Listing{Data: data, Pagination: p}
}

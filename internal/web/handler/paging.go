package handler

import "github.com/gofiber/fiber/v2"

// ParsePagination reads and clamps the page and pageSize query parameters.
func ParsePagination(c *fiber.Ctx) Pagination {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	pageSize := c.QueryInt("pageSize", DefaultPageSize)
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	return Pagination{Page: page, PageSize: pageSize}
}

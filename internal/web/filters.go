package web

import (
	"strconv"
	"strings"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func parseInt(value string, fallback int) int {
	val, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

func parsePagination(pageRaw, sizeRaw string) (int, int) {
	page := parseInt(pageRaw, 1)
	size := parseInt(sizeRaw, defaultPageSize)
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// pageCount returns how many pages of size hold total items, at least one.
func pageCount(size, total int) int {
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	return pages
}

// pageBounds returns the slice bounds of page within total items. Pages past
// the end yield an empty range.
func pageBounds(page, size, total int) (int, int) {
	if page < 1 || page-1 >= pageCount(size, total) {
		return total, total
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	return start, end
}

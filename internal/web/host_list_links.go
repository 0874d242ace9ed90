package web

import (
	"fmt"
)

type hostPager struct {
	Page     int
	Pages    int
	Total    int
	PrevLink string
	NextLink string
}

func buildHostListLink(importID int64, page, size int) string {
	if size == defaultPageSize {
		return fmt.Sprintf("/imports/%d?page=%d", importID, page)
	}
	return fmt.Sprintf("/imports/%d?page=%d&page_size=%d", importID, page, size)
}

func buildHostPager(importID int64, page, size, total int) hostPager {
	pages := pageCount(size, total)
	p := hostPager{Page: page, Pages: pages, Total: total}
	if page > 1 {
		p.PrevLink = buildHostListLink(importID, page-1, size)
	}
	if page < pages {
		p.NextLink = buildHostListLink(importID, page+1, size)
	}
	return p
}

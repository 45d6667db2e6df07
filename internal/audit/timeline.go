package audit

import "time"

// TimelineFilters menampung filter dasar untuk audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	UserID   string
	Type     string
	Page     int
	PageSize int
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"hasNext"`
	PageSize int  `json:"pageSize"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result membungkus hasil timeline dengan informasi paging.
type Result struct {
	Rows   []Event    `json:"events"`
	Paging PagingInfo `json:"paging"`
}

// WindowParams is the query window handed to a Repository.
type WindowParams struct {
	From       time.Time
	To         time.Time
	UserID     string
	Type       string
	OffsetRows int32
	LimitRows  int32
}

package models

type PaginationResult[T any] struct {
	Items           []T  `json:"items"`
	TotalItems      int  `json:"totalItems"`
	Page            int  `json:"page"`
	PageSize        int  `json:"pageSize"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

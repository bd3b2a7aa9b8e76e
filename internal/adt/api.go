package adt

import "hims-billing-backend/internal/store"

// ApiResponse models the top-level structure of the bed board response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int                 `json:"page"`
		PageSize int                 `json:"pageSize"`
		Total    int                 `json:"total"`
		Items    []store.BedFeedItem `json:"items"`
	} `json:"data"`
}

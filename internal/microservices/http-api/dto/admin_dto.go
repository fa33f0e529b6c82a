package dto

import "time"

type ClientResponse struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type ClientsResponse struct {
	Clients []ClientResponse `json:"clients"`
	Total   int              `json:"total"`
}

type OperatorResponse struct {
	LoginID   string     `json:"login_id"`
	Username  string     `json:"username,omitempty"`
	CarModel  string     `json:"car_model,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

type OperatorsResponse struct {
	Operators []OperatorResponse `json:"operators"`
	Total     int64              `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// ListQuery binds ?limit=&offset= on list endpoints.
type ListQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

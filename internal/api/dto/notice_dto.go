package dto

// NoticeRequest is the POST /api/notices body. Empty roles address every dashboard.
type NoticeRequest struct {
	Message string   `json:"message" validate:"required,max=500"`
	Roles   []string `json:"roles" validate:"omitempty,max=9,dive,required"`
}

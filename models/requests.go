package models

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query      string `json:"query" binding:"required"`
	DeviceType string `json:"deviceType,omitempty"`
	AppVersion string `json:"appVersion,omitempty"`
}

// DocumentPatchRequest is the body of PATCH /api/v1/documents/:id. Only the
// display name and lifecycle status may be changed after ingestion.
type DocumentPatchRequest struct {
	DisplayName *string `json:"displayName,omitempty"`
	Status      *string `json:"status,omitempty" binding:"omitempty,oneof=active deleted"`
}

// UserCreateRequest is the body of POST /api/v1/users.
type UserCreateRequest struct {
	Email     string         `json:"email" binding:"required,email"`
	FirstName string         `json:"firstName" binding:"required"`
	LastName  string         `json:"lastName" binding:"required"`
	Settings  map[string]any `json:"settings,omitempty"`
}

// UserUpdateRequest is the body of PATCH /api/v1/users/:id.
type UserUpdateRequest struct {
	FirstName *string        `json:"firstName,omitempty"`
	LastName  *string        `json:"lastName,omitempty"`
	Settings  map[string]any `json:"settings,omitempty"`
}

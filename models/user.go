package models

import (
	"fmt"

	"github.com/google/uuid"
)

// User is an account record. The pipelines reference users by id only;
// account management itself lives in the users routes.
type User struct {
	ID            string         `bson:"_id" json:"id"`
	UserID        string         `bson:"userId" json:"userId"`
	SchemaVersion string         `bson:"schemaVersion" json:"schemaVersion"`
	Email         string         `bson:"email" json:"email"`
	FirstName     string         `bson:"firstName" json:"firstName"`
	LastName      string         `bson:"lastName" json:"lastName"`
	Settings      map[string]any `bson:"settings" json:"settings"`
	CreatedAt     string         `bson:"createdAt" json:"createdAt"`
	UpdatedAt     string         `bson:"updatedAt" json:"updatedAt"`
	Type          string         `bson:"type" json:"type"`
}

// NewUserID returns a fresh "user-<uuid>" identifier.
func NewUserID() string {
	return fmt.Sprintf("user-%s", uuid.NewString())
}

// Package store holds the MongoDB repositories for document, search
// activity, and user records.
package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when a record with the given id does not exist.
var ErrNotFound = errors.New("record not found")

func mapMongoErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

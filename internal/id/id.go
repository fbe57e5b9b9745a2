// Package id generates job identifiers. Callers only ever learn ids they
// created, so unpredictability is the only property we need from them.
package id

import "github.com/google/uuid"

func New() string {
	return uuid.NewString()
}

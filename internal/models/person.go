package models

// Person represents a registered member of the expense group.
// A person can never be deleted while an expense or settlement references
// them; the registry rejects such deletions instead of cascading.
type Person struct {
	// ID is the unique identifier for the person (UUID format).
	ID string

	// DisplayName is the name shown for this person.
	DisplayName string

	// Email is an optional contact address.
	Email string

	// CreatedAt is the Unix timestamp when the person was registered.
	CreatedAt int64
}

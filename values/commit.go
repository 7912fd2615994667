package values

import "github.com/hashicorp/go-uuid"

// Commit is an opaque token tagging an override-set state. It changes on
// every mutating operation against a backend.
type Commit string

// InitialCommit is the commit reported for an app that has never been
// mutated.
const InitialCommit Commit = "00000000-0000-0000-0000-000000000000"

// NewCommit generates a fresh random commit token (a UUIDv4).
func NewCommit() (Commit, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", err
	}
	return Commit(id), nil
}

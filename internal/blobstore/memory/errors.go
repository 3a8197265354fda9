package memory

import (
	"fmt"

	"chatcore/internal/dag"
	"chatcore/internal/errors"
)

func notFound(id dag.Hash) error {
	return errors.New(errors.ErrNotFound, fmt.Sprintf("blob not found: %s", id))
}

func labelExists(name string) error {
	return errors.New(errors.ErrValidationFailed, fmt.Sprintf("label already exists: %s", name))
}

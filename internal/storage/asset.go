package storage

import (
	"fmt"
	"regexp"

	"github.com/pixil98/go-errors"
)

const CurrentVersion = 1

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// ValidId reports whether id can name a stored record. The same alphabet is
// safe as a file name and as a single bus subject token.
func ValidId(id string) bool {
	return idPattern.MatchString(id)
}

type ValidatingSpec interface {
	Validate() error
}

// Asset is the on-disk envelope around a record.
type Asset[T ValidatingSpec] struct {
	Version uint   `json:"version"`
	Id      string `json:"id"`
	Spec    T      `json:"spec"`
}

func (a *Asset[T]) Validate() error {
	el := errors.NewErrorList()

	if a.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	} else if a.Version > CurrentVersion {
		el.Add(fmt.Errorf("version %d is newer than supported version %d", a.Version, CurrentVersion))
	}

	if !ValidId(a.Id) {
		el.Add(fmt.Errorf("id %q must be non-empty and contain only letters, digits and dashes", a.Id))
	}

	el.Add(a.Spec.Validate())

	return el.Err()
}

package services

import (
	"errors"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/backend"
)

func isDuplicate(err error) bool {
	return errors.Is(err, backend.ErrDuplicate)
}

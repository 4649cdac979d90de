package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/questfall/walletgate/core"
)

// translate maps gorm errors onto the domain error taxonomy so callers
// never import gorm.
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.ErrNotFound
	}
	return err
}

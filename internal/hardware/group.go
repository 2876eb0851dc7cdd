package hardware

import (
	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/logger"
)

// CloseAll closes every item and joins the failures. It never stops early.
func CloseAll(items []Hardware) error {
	errFactory := errors.New()
	var errs []error

	for _, hw := range items {
		if err := hw.Close(); err != nil {
			logger.Warn().Err(err).Str("hardware", hw.Identifier().String()).Msg("Failed to close hardware")
			errs = append(errs, errFactory.Wrap(ErrCloseFailed, err).WithData(hw.Identifier().String()))
		}
	}

	return errors.Join(errs...)
}

// Collection is a Group without a report.
type Collection struct {
	items []Hardware
}

func NewCollection(items ...Hardware) *Collection {
	return &Collection{items: items}
}

func (c *Collection) Hardware() []Hardware {
	return c.items
}

func (c *Collection) Report() (string, bool) {
	return "", false
}

func (c *Collection) Close() error {
	return CloseAll(c.items)
}

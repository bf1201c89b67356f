package harvest

import (
	"errors"

	"github.com/openswoop/rmpscrape/pkg/scrape"
	"github.com/rotisserie/eris"
)

// mirror appends p to every mirror, continuing past failures so one broken
// mirror does not starve the others.
func (h *Harvester) mirror(p scrape.Professor) error {
	var errs []error
	for i, m := range h.mirrors {
		if err := m.Append(p); err != nil {
			errs = append(errs, eris.Wrapf(err, "harvest: mirror %d", i))
		}
	}
	return errors.Join(errs...)
}

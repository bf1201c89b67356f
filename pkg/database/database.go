package database

import (
	"io"

	"github.com/openswoop/rmpscrape/pkg/scrape"
)

// Database mirrors harvested professors outside the csv file.
type Database interface {
	io.Closer
	Append(scrape.Professor) error
}

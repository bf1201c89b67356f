package report

import (
	"bytes"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/openswoop/rmpscrape/pkg/scrape"
	"github.com/rotisserie/eris"
)

// WriteCsv writes in (a slice of csv-tagged structs) with a header row.
func WriteCsv(in interface{}, w io.Writer) error {
	return eris.Wrap(gocsv.Marshal(in, w), "report: write csv")
}

// readCsv loads every professor row from the file at path.
func readCsv(path string) ([]scrape.Professor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: open csv")
	}
	defer file.Close()

	var rows []scrape.Professor
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, eris.Wrap(err, "report: read csv")
	}
	return rows, nil
}

// CsvSink appends professors to a csv file. The file is reopened in append
// mode for every row so other readers always see whole rows.
type CsvSink struct {
	path string
}

// OpenCsv prepares the file at path, writing the header row only when the
// file is new or empty.
func OpenCsv(path string) (*CsvSink, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, eris.Wrap(err, "report: open csv")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, eris.Wrap(err, "report: stat csv")
	}
	if info.Size() == 0 {
		var buf bytes.Buffer
		if err := gocsv.Marshal([]scrape.Professor{}, &buf); err != nil {
			return nil, eris.Wrap(err, "report: encode header")
		}
		if _, err := file.Write(buf.Bytes()); err != nil {
			return nil, eris.Wrap(err, "report: write header")
		}
	}

	return &CsvSink{path: path}, nil
}

func (s *CsvSink) Path() string {
	return s.path
}

// Append encodes p in full before touching the file, then writes it with a
// single call.
func (s *CsvSink) Append(p scrape.Professor) error {
	var buf bytes.Buffer
	if err := gocsv.MarshalWithoutHeaders([]scrape.Professor{p}, &buf); err != nil {
		return eris.Wrapf(err, "report: encode tid %d", p.ProfessorId)
	}

	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return eris.Wrap(err, "report: open csv")
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		_ = file.Close()
		return eris.Wrapf(err, "report: append tid %d", p.ProfessorId)
	}
	return file.Close()
}

package database

import (
	"database/sql"

	"github.com/go-gorp/gorp/v3"
	_ "github.com/mattn/go-sqlite3"
	"github.com/openswoop/rmpscrape/pkg/persist"
	"github.com/openswoop/rmpscrape/pkg/scrape"
	"github.com/rotisserie/eris"
)

const professorsTable = "professors"

type Sqlite struct {
	db    *sql.DB
	dbmap *gorp.DbMap
}

func NewSqlite(file string) (*Sqlite, error) {
	// Initialize the database connection
	db, err := sql.Open("sqlite3", file)
	if err != nil {
		return nil, eris.Wrap(err, "database: open sqlite")
	}

	// Initialize the database mapping, creating the tables if it's our first run
	dbmap := &gorp.DbMap{Db: db, Dialect: gorp.SqliteDialect{}}
	dbmap.AddTableWithName(scrape.Professor{}, professorsTable).SetKeys(false, "ProfessorId")
	if err := dbmap.CreateTablesIfNotExists(); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "database: create tables")
	}

	return &Sqlite{db: db, dbmap: dbmap}, nil
}

// Append stores p, replacing any earlier scrape of the same tid.
func (s *Sqlite) Append(p scrape.Professor) error {
	tx, err := s.dbmap.Begin()
	if err != nil {
		return eris.Wrap(err, "database: begin")
	}
	if err := persist.Upsert(tx, &p); err != nil {
		_ = tx.Rollback()
		return eris.Wrapf(err, "database: save tid %d", p.ProfessorId)
	}
	return eris.Wrap(tx.Commit(), "database: commit")
}

// professor loads the stored row for tid.
func (s *Sqlite) professor(tid int) (scrape.Professor, error) {
	var p scrape.Professor
	err := s.dbmap.SelectOne(&p, "select * from "+professorsTable+" where professor_id = ?", tid)
	return p, eris.Wrapf(err, "database: load tid %d", tid)
}

func (s *Sqlite) count() (int64, error) {
	n, err := s.dbmap.SelectInt("select count(*) from " + professorsTable)
	return n, eris.Wrap(err, "database: count")
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}

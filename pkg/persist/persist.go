package persist

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

type Transaction interface {
	Insert(list ...interface{}) error
	Update(list ...interface{}) (int64, error)
}

// Upsert inserts every row, updating rows whose key is already present so a
// rerun over the same tids keeps the latest scrape.
func Upsert(t Transaction, rows ...interface{}) error {
	for _, row := range rows {
		err := t.Insert(row)
		if IsDuplicate(err) {
			_, err = t.Update(row)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func IsDuplicate(err error) bool {
	var sqliteError sqlite3.Error
	if errors.As(err, &sqliteError) {
		return sqliteError.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteError.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

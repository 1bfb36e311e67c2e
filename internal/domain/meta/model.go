package meta

import "time"

// Dataset records the last refresh of one warehouse dataset.
type Dataset struct {
	ID       string    `db:"dataset" json:"dataset"`
	Modified time.Time `db:"modified" json:"modified"`
	RowCount int       `db:"row_count" json:"row_count"`
}

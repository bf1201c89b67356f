package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/openswoop/rmpscrape/pkg/scrape"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

const defaultBatchSize = 500

type professorRow struct {
	ProfessorId       int64               `bigquery:"professor_id"`
	Fname             string              `bigquery:"fname"`
	Lname             string              `bigquery:"lname"`
	School            string              `bigquery:"school"`
	Department        string              `bigquery:"department"`
	OverallQuality    string              `bigquery:"overall_quality"`
	WouldTakeAgain    string              `bigquery:"would_take_again"`
	LevelOfDifficulty string              `bigquery:"level_of_difficulty"`
	Tags              []string            `bigquery:"tags"`
	Hotness           bigquery.NullString `bigquery:"hotness"`
	ScrapedAt         time.Time           `bigquery:"scraped_at"`
}

func toRow(p scrape.Professor, scrapedAt time.Time) professorRow {
	return professorRow{
		ProfessorId:       int64(p.ProfessorId),
		Fname:             p.Fname,
		Lname:             p.Lname,
		School:            p.School,
		Department:        p.Department,
		OverallQuality:    p.OverallQuality,
		WouldTakeAgain:    p.WouldTakeAgain,
		LevelOfDifficulty: p.LevelOfDifficulty,
		Tags:              append([]string{}, p.Tags...),
		Hotness:           bigquery.NullString{StringVal: p.Hotness, Valid: p.Hotness != ""},
		ScrapedAt:         scrapedAt,
	}
}

// BigQuery buffers professors and merges them into the professors table in
// batches. Rows still buffered are flushed by Close.
type BigQuery struct {
	ctx       context.Context
	client    *bigquery.Client
	dataset   *bigquery.Dataset
	datasetID string
	batchSize int
	pending   []professorRow
}

func NewBigQuery(ctx context.Context, projectID, datasetID string, batchSize int) (*BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "database: create bigquery client")
	}

	dataset := client.Dataset(datasetID)
	if err := dataset.Create(ctx, nil); err != nil {
		if !isDuplicateError(err) {
			_ = client.Close()
			return nil, eris.Wrap(err, "database: create dataset")
		}
	}

	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &BigQuery{
		ctx:       ctx,
		client:    client,
		dataset:   dataset,
		datasetID: datasetID,
		batchSize: batchSize,
	}, nil
}

func (bq *BigQuery) Append(p scrape.Professor) error {
	bq.pending = append(bq.pending, toRow(p, time.Now().UTC()))
	if len(bq.pending) < bq.batchSize {
		return nil
	}
	return bq.Flush()
}

func (bq *BigQuery) Flush() error {
	if len(bq.pending) == 0 {
		return nil
	}
	if err := bq.insert(professorsTable, bq.pending); err != nil {
		return err
	}
	zap.L().Info("merged professors into bigquery", zap.Int("rows", len(bq.pending)))
	bq.pending = nil
	return nil
}

func (bq *BigQuery) Close() error {
	err := bq.Flush()
	if cerr := bq.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (bq *BigQuery) insert(tableName string, rows []professorRow) error {
	// Infer the table schema
	schema, err := bigquery.InferSchema(professorRow{})
	if err != nil {
		return eris.Wrap(err, "database: infer schema")
	}

	// Get a reference to the table
	table := bq.dataset.Table(tableName)
	if err := table.Create(bq.ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		if !isDuplicateError(err) {
			return eris.Wrap(err, "database: create table")
		}
	}

	// Uses a different arrivals table each time, kept for a day for auditing
	tempName := tableName + "_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	newArrivals := bq.dataset.Table(tempName)
	meta := &bigquery.TableMetadata{Schema: schema, ExpirationTime: time.Now().Add(24 * time.Hour)}
	if err := newArrivals.Create(bq.ctx, meta); err != nil {
		return eris.Wrap(err, "database: create arrivals table")
	}

	if err := newArrivals.Inserter().Put(bq.ctx, rows); err != nil {
		return eris.Wrap(err, "database: insert rows")
	}

	job, err := bq.client.Query(mergeQuery(bq.datasetID, tableName, tempName)).Run(bq.ctx)
	if err != nil {
		return eris.Wrap(err, "database: run merge")
	}
	status, err := job.Wait(bq.ctx)
	if err != nil {
		return eris.Wrap(err, "database: wait for merge")
	}
	return eris.Wrap(status.Err(), "database: merge")
}

func mergeQuery(datasetID, tableName, tempName string) string {
	return fmt.Sprintf(`
		MERGE %[1]s.%[2]s t
		USING %[1]s.%[3]s s
		ON t.professor_id = s.professor_id
		WHEN MATCHED THEN
		  UPDATE
		    SET fname = s.fname,
		        lname = s.lname,
		        school = s.school,
		        department = s.department,
		        overall_quality = s.overall_quality,
		        would_take_again = s.would_take_again,
		        level_of_difficulty = s.level_of_difficulty,
		        tags = s.tags,
		        hotness = s.hotness,
		        scraped_at = s.scraped_at
		WHEN NOT MATCHED THEN
		  INSERT ROW`, datasetID, tableName, tempName)
}

func isDuplicateError(err error) bool {
	if e, ok := err.(*googleapi.Error); ok {
		return e.Code == 409
	}
	return false
}

package dbhandler

import (
	"context"
	"errors"

	"database/sql"

	"github.com/behrang/sqlbatch"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const (
	serializationFailure = "40001"
	maxAttempts          = 10
)

// DBHandler contains a connection to database.
type DBHandler struct {
	DB *sql.DB
}

// Batch creates a transaction and executes the batch of commands in that transaction.
// If a retryable error is received, the batch is retried.
func (handler DBHandler) Batch(opts *sql.TxOptions, commands []sqlbatch.Command) ([]interface{}, error) {

	for attempt := 1; ; attempt++ {
		results, err := handler.tryBatch(opts, commands)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == serializationFailure && attempt < maxAttempts {
			log.Warn().Err(err).Int("attempt", attempt).Msg("🟡 Retryable Postgres error, retrying")
			continue
		}
		return results, err
	}
}

func (handler DBHandler) tryBatch(opts *sql.TxOptions, commands []sqlbatch.Command) (results []interface{}, err error) {

	results = make([]interface{}, len(commands))

	tx, err := handler.DB.BeginTx(context.Background(), opts)
	if err != nil {
		return
	}
	defer tx.Rollback()

	results, err = sqlbatch.Batch(tx, commands)

	if err == nil {
		err = tx.Commit()
	}

	return
}

package repository

import (
	"gmptracker/domain"
	"time"

	"github.com/behrang/sqlbatch"
)

const (
	defaultHistoryLimit = 50

	sqlJournalCreateTable = `
	create table if not exists action_journal (
		id            bigserial primary key,
		tx_hash       text not null,
		action        text not null,
		state         text not null,
		message       text not null default '',
		relay_tx_hash text not null default '',
		create_time   timestamptz not null,
		settle_time   timestamptz not null
	)
`

	sqlJournalCreateIndex = `
	create index if not exists action_journal_tx_hash_idx on action_journal (lower(tx_hash), settle_time desc)
`

	sqlJournalInsert = `
	insert into action_journal (
			tx_hash, action, state, message, relay_tx_hash, create_time, settle_time
		)
		values (
			$1, $2, $3, $4, $5, $6, $7
		)
`

	sqlJournalFindByTxHash = `
	select
		tx_hash, action, state, message, relay_tx_hash, create_time, settle_time
	from action_journal
	where lower(tx_hash) = lower($1)
	order by settle_time desc
	limit $2
`
)

// JournalRepository stores settled recovery actions and corrections.
type JournalRepository struct {
	batchHandler BatchHandler
}

func NewJournalRepository(db BatchHandler) *JournalRepository {
	return &JournalRepository{batchHandler: db}
}

func readAllJournalEntries(memo interface{}, scan func(...interface{}) error) (interface{}, error) {
	r := domain.JournalEntry{}
	var createTime, settleTime time.Time
	err := scan(
		&r.TxHash, &r.Action, &r.State, &r.Message, &r.RelayTxHash, &createTime, &settleTime,
	)
	r.CreateTime = createTime.UTC()
	r.SettleTime = settleTime.UTC()

	list := memo.([]domain.JournalEntry)
	list = append(list, r)
	return list, err
}

func (repo *JournalRepository) EnsureSchema() error {
	_, err := repo.batchHandler.Batch(&BatchOptionSerializable, []sqlbatch.Command{
		{Query: sqlJournalCreateTable},
		{Query: sqlJournalCreateIndex},
	})
	return err
}

func (repo *JournalRepository) Insert(entry domain.JournalEntry) error {
	_, err := repo.batchHandler.Batch(&BatchOptionNormal, []sqlbatch.Command{
		{
			Query: sqlJournalInsert,
			Args: []interface{}{
				entry.TxHash, entry.Action, entry.State, entry.Message, entry.RelayTxHash, entry.CreateTime, entry.SettleTime,
			},
			Affect: 1,
		},
	})
	return err
}

func (repo *JournalRepository) FindByTxHash(txHash string, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	results, err := repo.batchHandler.Batch(&BatchOptionNormalReadOnly, []sqlbatch.Command{
		{
			Query:   sqlJournalFindByTxHash,
			Args:    []interface{}{txHash, limit},
			Init:    make([]domain.JournalEntry, 0),
			ReadAll: readAllJournalEntries,
		},
	})
	if err != nil {
		return nil, err
	}
	result, _ := results[0].([]domain.JournalEntry)
	return result, nil
}

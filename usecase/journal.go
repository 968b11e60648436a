package usecase

import (
	"gmptracker/domain"
	"time"

	"github.com/rs/zerolog"
)

type JournalRepository interface {
	Insert(entry domain.JournalEntry) error
	FindByTxHash(txHash string, limit int) ([]domain.JournalEntry, error)
}

// JournalInteractor keeps an audit trail of settled actions and corrections.
// Without a repository it only logs.
type JournalInteractor struct {
	repository JournalRepository
	logger     zerolog.Logger
}

func NewJournalInteractor(repository JournalRepository, logger zerolog.Logger) *JournalInteractor {
	return &JournalInteractor{
		repository: repository,
		logger:     logger.With().Str("component", "journal").Logger(),
	}
}

func (interactor *JournalInteractor) Enabled() bool {
	return interactor != nil && interactor.repository != nil
}

func (interactor *JournalInteractor) Record(txHash, action string, response domain.ActionResponse, started time.Time) {
	if !interactor.Enabled() {
		return
	}
	entry := domain.JournalEntry{
		TxHash:      txHash,
		Action:      action,
		State:       response.State,
		Message:     response.Message,
		RelayTxHash: response.TxHash,
		CreateTime:  started,
		SettleTime:  time.Now(),
	}
	if err := interactor.repository.Insert(entry); err != nil {
		interactor.logger.Error().Err(err).Str("tx", txHash).Str("action", action).Msg("🔴 inserting journal entry")
	}
}

func (interactor *JournalInteractor) History(txHash string, limit int) ([]domain.JournalEntry, error) {
	if !interactor.Enabled() {
		return []domain.JournalEntry{}, nil
	}
	entries, err := interactor.repository.FindByTxHash(txHash, limit)
	if err != nil {
		interactor.logger.Error().Err(err).Str("tx", txHash).Msg("🔴 loading journal")
		return nil, err
	}
	return entries, nil
}

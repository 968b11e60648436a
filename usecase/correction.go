package usecase

import (
	"context"
	"gmptracker/domain"
	"gmptracker/interface/exporter"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
)

// CorrectionRequest asks to re-index one step with a hash the indexer missed.
// With Refresh set, the step's own indexed hash and sender are re-submitted and
// Hash and Relayer are ignored.
type CorrectionRequest struct {
	Step    domain.StepID `json:"step"`
	Hash    string        `json:"hash,omitempty"`
	Relayer string        `json:"relayer,omitempty"`
	Refresh bool          `json:"refresh,omitempty"`
}

type CorrectionSubmitter struct {
	query  QueryClient
	logger zerolog.Logger
}

func NewCorrectionSubmitter(query QueryClient, logger zerolog.Logger) *CorrectionSubmitter {
	return &CorrectionSubmitter{
		query:  query,
		logger: logger.With().Str("component", "correction").Logger(),
	}
}

// Prepare validates a correction against the current snapshot and builds the
// saveGMP parameters for it.
func (submitter *CorrectionSubmitter) Prepare(snapshot domain.Snapshot, editable bool, request CorrectionRequest) (domain.SaveParams, error) {
	if !editable {
		return domain.SaveParams{}, domain.ErrorNotEditable
	}
	target, exist := snapshot.Correction(request.Step)
	if !exist || snapshot.Record == nil {
		return domain.SaveParams{}, domain.ErrorNoCorrection
	}

	params := domain.CallTriple(snapshot.Record.Call)
	if request.Refresh {
		if target.Hash == "" {
			return domain.SaveParams{}, domain.ErrorEmptyHash
		}
		params.TransactionHash = target.Hash
		params.RelayerAddress = target.Relayer
		params.Event = target.Event
		return params, nil
	}

	if !target.Editable {
		return domain.SaveParams{}, domain.ErrorNoCorrection
	}
	hash := strings.TrimSpace(request.Hash)
	if hash == "" {
		return domain.SaveParams{}, domain.ErrorEmptyHash
	}
	if !validHash(hash) {
		return domain.SaveParams{}, domain.ErrorInvalidHash
	}
	params.TransactionHash = hash
	params.RelayerAddress = strings.TrimSpace(request.Relayer)
	if params.RelayerAddress != "" && !common.IsHexAddress(params.RelayerAddress) {
		return domain.SaveParams{}, domain.ErrorInvalidAddress
	}
	// a typed executed hash is a plain save; other steps keep their tag
	if request.Step != domain.StepExecuted {
		params.Event = target.Event
	}
	return params, nil
}

// Submit is best effort: a failed save is logged and the caller re-polls
// either way.
func (submitter *CorrectionSubmitter) Submit(ctx context.Context, step domain.StepID, params domain.SaveParams) {
	err := submitter.query.SaveGMP(ctx, params)
	if err != nil {
		submitter.logger.Error().Err(err).
			Str("tx", params.SourceTransactionHash).
			Str("step", string(step)).
			Msg("🔴 saving correction")
		exporter.IncCorrection(string(step), "failed")
		return
	}
	submitter.logger.Info().
		Str("tx", params.SourceTransactionHash).
		Str("step", string(step)).
		Str("hash", params.TransactionHash).
		Str("event", params.Event).
		Msg("🟢 correction saved")
	exporter.IncCorrection(string(step), "saved")
}

func validHash(hash string) bool {
	if !strings.HasPrefix(hash, "0x") && !strings.HasPrefix(hash, "0X") {
		hash = "0x" + hash
	}
	b, err := hexutil.Decode(hash)
	return err == nil && len(b) == common.HashLength
}

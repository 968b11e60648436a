package usecase

import (
	"gmptracker/domain"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	MethodExecute          = "execute"
	MethodExecuteWithToken = "executeWithToken"
)

const executableABIJSON = `[
	{
		"type": "function",
		"name": "execute",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "commandId", "type": "bytes32"},
			{"name": "sourceChain", "type": "string"},
			{"name": "sourceAddress", "type": "string"},
			{"name": "payload", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "executeWithToken",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "commandId", "type": "bytes32"},
			{"name": "sourceChain", "type": "string"},
			{"name": "sourceAddress", "type": "string"},
			{"name": "payload", "type": "bytes"},
			{"name": "tokenSymbol", "type": "string"},
			{"name": "amount", "type": "uint256"}
		],
		"outputs": []
	}
]`

var executableABI = mustParseABI(executableABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// executeCalldata builds the destination contract call a manual execution
// sends. It returns empty strings until the call is approved or when any
// argument is malformed.
func executeCalldata(r *domain.GMPRecord) (method string, data string) {
	if r == nil || r.Call == nil || r.Approved == nil {
		return "", ""
	}
	approved := r.Approved.ReturnValues

	commandID, err := hexutil.Decode(approved.CommandID)
	if err != nil || len(commandID) != common.HashLength {
		return "", ""
	}
	payload, err := hexutil.Decode(r.Call.ReturnValues.Payload)
	if err != nil {
		return "", ""
	}

	args := []interface{}{
		common.BytesToHash(commandID),
		approved.SourceChain,
		approved.SourceAddress,
		payload,
	}
	method = MethodExecute
	if r.Call.Event == domain.EventContractCallWithToken {
		amount := approved.Amount.Int()
		if amount == nil {
			amount = new(big.Int)
		}
		method = MethodExecuteWithToken
		args = append(args, approved.Symbol, amount)
	}

	packed, err := executableABI.Pack(method, args...)
	if err != nil {
		return "", ""
	}
	return method, hexutil.Encode(packed)
}

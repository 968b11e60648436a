package domain

import (
	"strings"
	"time"
)

const (
	MainNetwork = "mainnet"
	TestNetwork = "testnet"
)

// ApproveDelay is the minimum age of a call before a manual approval is offered.
type ApproveDelay struct {
	Mainnet time.Duration
	Other   time.Duration
}

// Policy holds the business thresholds of the reconciliation engine.
type Policy struct {
	Environment string

	ApproveDelays       map[string]ApproveDelay
	DefaultApproveDelay time.Duration
	ExecuteDelay        time.Duration
	RefundStaleAfter    time.Duration
	ErrorGracePeriod    time.Duration
	ErrorDisplayDelay   time.Duration

	NotEnoughGasRatio    float64
	NoGasRemainThreshold float64
	ApproveDustThreshold float64
	AddGasDustThreshold  float64

	RefundMinRemain   float64
	RefundRemainRatio float64
	RefundMinUSD      float64
}

func DefaultPolicy() Policy {
	return Policy{
		Environment: MainNetwork,
		ApproveDelays: map[string]ApproveDelay{
			"ethereum": {Mainnet: 15 * time.Minute, Other: 20 * time.Minute},
			"polygon":  {Mainnet: 7 * time.Minute, Other: 15 * time.Minute},
		},
		DefaultApproveDelay: 3 * time.Minute,
		ExecuteDelay:        2 * time.Minute,
		RefundStaleAfter:    3 * time.Minute,
		ErrorGracePeriod:    240 * time.Second,
		ErrorDisplayDelay:   45 * time.Second,

		NotEnoughGasRatio:    0.95,
		NoGasRemainThreshold: 0.001,
		ApproveDustThreshold: 0.00001,
		AddGasDustThreshold:  0.0001,

		RefundMinRemain:   0.0001,
		RefundRemainRatio: 0.1,
		RefundMinUSD:      1,
	}
}

func (p Policy) IsMainnet() bool {
	return p.Environment == MainNetwork
}

// ApproveDelayFor returns the approval delay of a source chain.
func (p Policy) ApproveDelayFor(chain string) time.Duration {
	delay, exist := p.ApproveDelays[strings.ToLower(chain)]
	if !exist {
		return p.DefaultApproveDelay
	}
	if p.IsMainnet() {
		return delay.Mainnet
	}
	return delay.Other
}

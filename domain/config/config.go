package config

import (
	"fmt"
	"gmptracker/domain"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	MainNetwork = domain.MainNetwork
	TestNetwork = domain.TestNetwork
)

var (
	ErrorInvalidEnvironment = fmt.Errorf("environment must be equal to 'mainnet' or 'testnet' only")
	ErrorInvalidQueryURL    = fmt.Errorf("invalid gmp query api url")
	ErrorInvalidRelayURL    = fmt.Errorf("invalid relay api url")

	ErrorInvalidPollInterval   = fmt.Errorf("invalid time interval for polling")
	ErrorInvalidSettleDelay    = fmt.Errorf("invalid settle delay for actions")
	ErrorInvalidChainDelay     = fmt.Errorf("invalid delay for chained approval")
	ErrorInvalidRequestTimeout = fmt.Errorf("invalid request timeout")
	ErrorInvalidPolicyDuration = fmt.Errorf("invalid duration in policy")
	ErrorInvalidLogLevel       = fmt.Errorf("invalid log level")
	ErrorInvalidReferenceData  = fmt.Errorf("invalid chains or assets definition")
)

var (
	TrailingSlashRE = regexp.MustCompile("/+$")
)

var (
	dbUri       string
	environment string
	staging     bool

	queryAPIURL string
	relayAPIURL string
	listenAddr  string

	pollInterval   time.Duration
	settleDelay    time.Duration
	chainDelay     time.Duration
	requestTimeout time.Duration
	requestRate    float64
	requestBurst   int

	logLevel   zerolog.Level
	logFormat  string
	logSampler bool

	policy domain.Policy
	chains []domain.ChainInfo
	assets []domain.AssetInfo
)

func setDefaults() {
	viper.SetDefault("environment", MainNetwork)
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("poll_interval", "9s")
	viper.SetDefault("settle_delay", "15s")
	viper.SetDefault("chain_delay", "1s")
	viper.SetDefault("request_timeout", "30s")
	viper.SetDefault("request_rate", 5)
	viper.SetDefault("request_burst", 10)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "console")

	defaults := domain.DefaultPolicy()
	viper.SetDefault("policy.default_approve_delay", defaults.DefaultApproveDelay.String())
	viper.SetDefault("policy.execute_delay", defaults.ExecuteDelay.String())
	viper.SetDefault("policy.refund_stale_after", defaults.RefundStaleAfter.String())
	viper.SetDefault("policy.error_grace_period", defaults.ErrorGracePeriod.String())
	viper.SetDefault("policy.error_display_delay", defaults.ErrorDisplayDelay.String())
	viper.SetDefault("policy.not_enough_gas_ratio", defaults.NotEnoughGasRatio)
	viper.SetDefault("policy.no_gas_remain_threshold", defaults.NoGasRemainThreshold)
	viper.SetDefault("policy.approve_dust_threshold", defaults.ApproveDustThreshold)
	viper.SetDefault("policy.add_gas_dust_threshold", defaults.AddGasDustThreshold)
	viper.SetDefault("policy.refund_min_remain", defaults.RefundMinRemain)
	viper.SetDefault("policy.refund_remain_ratio", defaults.RefundRemainRatio)
	viper.SetDefault("policy.refund_min_usd", defaults.RefundMinUSD)
}

func ReadConfig(filePath string) {
	setDefaults()

	viper.SetConfigFile(filePath)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed reading config file")
	}

	err := initializeVariables()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration error")
	}
}

// This method processes the configuration parameters and keeps the processed values
// in some variables for later accesses rapidly.
func initializeVariables() error {
	var err error

	// Database stuff, optional: without it the action journal is disabled
	dbUri = TrailingSlashRE.ReplaceAllString(viper.GetString("service_db_uri"), "")

	// Environment stuff
	environment = strings.TrimSpace(strings.ToLower(viper.GetString("environment")))
	if environment != MainNetwork && environment != TestNetwork {
		return ErrorInvalidEnvironment
	}
	staging = viper.GetBool("staging")

	// Endpoints
	queryAPIURL, err = readURL("query_api_url")
	if err != nil {
		return ErrorInvalidQueryURL
	}
	relayAPIURL, err = readURL("relay_api_url")
	if err != nil {
		return ErrorInvalidRelayURL
	}
	listenAddr = strings.TrimSpace(viper.GetString("listen_addr"))

	//---------------------------------------------------------------
	// intervals
	if pollInterval, err = readDuration("poll_interval"); err != nil {
		return ErrorInvalidPollInterval
	}
	if settleDelay, err = readDuration("settle_delay"); err != nil {
		return ErrorInvalidSettleDelay
	}
	if chainDelay, err = readDuration("chain_delay"); err != nil {
		return ErrorInvalidChainDelay
	}
	if requestTimeout, err = readDuration("request_timeout"); err != nil {
		return ErrorInvalidRequestTimeout
	}
	requestRate = viper.GetFloat64("request_rate")
	requestBurst = viper.GetInt("request_burst")

	//---------------------------------------------------------------
	// logging
	logLevel, err = zerolog.ParseLevel(strings.ToLower(viper.GetString("log_level")))
	if err != nil {
		return ErrorInvalidLogLevel
	}
	logFormat = strings.ToLower(viper.GetString("log_format"))
	logSampler = viper.GetBool("log_sampler")

	//---------------------------------------------------------------
	// policy
	policy, err = readPolicy()
	if err != nil {
		return err
	}

	//---------------------------------------------------------------
	// reference data
	chains = nil
	assets = nil
	if err = viper.UnmarshalKey("chains", &chains); err != nil {
		return ErrorInvalidReferenceData
	}
	if err = viper.UnmarshalKey("assets", &assets); err != nil {
		return ErrorInvalidReferenceData
	}

	return nil
}

func readURL(key string) (string, error) {
	value := TrailingSlashRE.ReplaceAllString(strings.TrimSpace(viper.GetString(key)), "")
	u, err := url.Parse(value)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return value, nil
}

func readDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %v", d)
	}
	return d, nil
}

func readPolicy() (domain.Policy, error) {
	p := domain.DefaultPolicy()
	p.Environment = environment

	var err error
	durations := map[string]*time.Duration{
		"policy.default_approve_delay": &p.DefaultApproveDelay,
		"policy.execute_delay":         &p.ExecuteDelay,
		"policy.refund_stale_after":    &p.RefundStaleAfter,
		"policy.error_grace_period":    &p.ErrorGracePeriod,
		"policy.error_display_delay":   &p.ErrorDisplayDelay,
	}
	for key, target := range durations {
		if *target, err = readDuration(key); err != nil {
			return p, fmt.Errorf("%w: %v", ErrorInvalidPolicyDuration, key)
		}
	}

	p.NotEnoughGasRatio = viper.GetFloat64("policy.not_enough_gas_ratio")
	p.NoGasRemainThreshold = viper.GetFloat64("policy.no_gas_remain_threshold")
	p.ApproveDustThreshold = viper.GetFloat64("policy.approve_dust_threshold")
	p.AddGasDustThreshold = viper.GetFloat64("policy.add_gas_dust_threshold")
	p.RefundMinRemain = viper.GetFloat64("policy.refund_min_remain")
	p.RefundRemainRatio = viper.GetFloat64("policy.refund_remain_ratio")
	p.RefundMinUSD = viper.GetFloat64("policy.refund_min_usd")

	// approve_delays overrides or extends the built-in per chain delays:
	//   approve_delays:
	//     ethereum: { mainnet: 15m, other: 20m }
	for chain, raw := range viper.GetStringMap("policy.approve_delays") {
		values := cast.ToStringMapString(raw)
		delay := p.ApproveDelays[strings.ToLower(chain)]
		if s, exist := values["mainnet"]; exist {
			if delay.Mainnet, err = time.ParseDuration(s); err != nil {
				return p, fmt.Errorf("%w: approve delay of %v", ErrorInvalidPolicyDuration, chain)
			}
		}
		if s, exist := values["other"]; exist {
			if delay.Other, err = time.ParseDuration(s); err != nil {
				return p, fmt.Errorf("%w: approve delay of %v", ErrorInvalidPolicyDuration, chain)
			}
		}
		p.ApproveDelays[strings.ToLower(chain)] = delay
	}

	return p, nil
}

//-------------------------------------------------------------------
// Normal configuration values

func GetDbUri() string {
	return dbUri
}

func GetEnvironment() string {
	return environment
}

func GetQueryAPIURL() string {
	return queryAPIURL
}

func GetRelayAPIURL() string {
	return relayAPIURL
}

func GetListenAddr() string {
	return listenAddr
}

func GetPollInterval() time.Duration {
	return pollInterval
}

func GetSettleDelay() time.Duration {
	return settleDelay
}

func GetChainDelay() time.Duration {
	return chainDelay
}

func GetRequestTimeout() time.Duration {
	return requestTimeout
}

func GetRequestRate() float64 {
	return requestRate
}

func GetRequestBurst() int {
	return requestBurst
}

func GetLogLevel() zerolog.Level {
	return logLevel
}

func GetLogFormat() string {
	return logFormat
}

func GetLogSampler() bool {
	return logSampler
}

func GetPolicy() domain.Policy {
	return policy
}

func GetChains() []domain.ChainInfo {
	return chains
}

func GetAssets() []domain.AssetInfo {
	return assets
}

// -------------------------------------------------------------------
// Evaluating values

func IsTestNet() bool {
	return environment == TestNetwork
}

func IsJournalEnabled() bool {
	return dbUri != ""
}

// IsEditable tells whether manual corrections may be offered when they are
// requested by the operator.
func IsEditable(requested bool) bool {
	return requested && (staging || environment != MainNetwork)
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"market-sim/src/agents"
	"market-sim/src/analytics"
	"market-sim/src/market"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Session SessionConfig `mapstructure:"session"`
}

type ServerConfig struct {
	Port              int `mapstructure:"port"`
	RateLimitRequests int `mapstructure:"rate_limit_requests"`
	RateLimitSeconds  int `mapstructure:"rate_limit_seconds"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// SessionConfig is the full simulation profile: universe, clock, fees,
// participant mix and policy tuning. One profile describes one
// reproducible run.
type SessionConfig struct {
	Name              string              `mapstructure:"name"`
	Seed              int64               `mapstructure:"seed"`
	ReturnsWindow     int                 `mapstructure:"returns_window"`
	TradeHistoryLimit int                 `mapstructure:"trade_history_limit"`
	Schedule          ScheduleConfig      `mapstructure:"schedule"`
	Fees              FeesConfig          `mapstructure:"fees"`
	Instruments       []InstrumentConfig  `mapstructure:"instruments"`
	Participants      []ParticipantConfig `mapstructure:"participants"`
	Policy            PolicyConfig        `mapstructure:"policy"`
}

type ScheduleConfig struct {
	PreOpenTicks        uint64 `mapstructure:"pre_open_ticks"`
	OpeningAuctionTicks uint64 `mapstructure:"opening_auction_ticks"`
	ClosingAuctionTicks uint64 `mapstructure:"closing_auction_ticks"`
	SessionTicks        uint64 `mapstructure:"session_ticks"`
}

type FeesConfig struct {
	MakerBps int64 `mapstructure:"maker_bps"`
	TakerBps int64 `mapstructure:"taker_bps"`
}

type InstrumentConfig struct {
	Symbol           string `mapstructure:"symbol"`
	Reference        int64  `mapstructure:"reference"`
	BandBps          int64  `mapstructure:"band_bps"`
	HaltBandBps      int64  `mapstructure:"halt_band_bps"`
	AuctionTicks     uint64 `mapstructure:"auction_ticks"`
	HaltTicks        uint64 `mapstructure:"halt_ticks"`
	DefaultNewsDecay string `mapstructure:"default_news_decay"`
}

// ParticipantConfig describes one cohort; Count clones it with numbered
// names so a mix like "6 noise traders" stays a one-liner.
type ParticipantConfig struct {
	Name        string `mapstructure:"name"`
	Type        string `mapstructure:"type"`
	Tier        string `mapstructure:"tier"`
	Count       int    `mapstructure:"count"`
	MaxPosition int64  `mapstructure:"max_position"`
	MaxLoss     int64  `mapstructure:"max_loss"`
}

type PolicyConfig struct {
	MMSpreadBps    int64  `mapstructure:"mm_spread_bps"`
	MMQuoteSize    int64  `mapstructure:"mm_quote_size"`
	MMMaxInventory int64  `mapstructure:"mm_max_inventory"`
	MMRequoteTicks uint64 `mapstructure:"mm_requote_ticks"`

	HFTSize      int64 `mapstructure:"hft_size"`
	HFTMinSpread int64 `mapstructure:"hft_min_spread"`

	NoiseTradeProb  float64 `mapstructure:"noise_trade_prob"`
	NoiseMarketProb float64 `mapstructure:"noise_market_prob"`
	NoiseMaxSize    int64   `mapstructure:"noise_max_size"`
	NoiseBandBps    int64   `mapstructure:"noise_band_bps"`
	NoiseDriftVol   float64 `mapstructure:"noise_drift_vol"`

	MomentumWindow    int     `mapstructure:"momentum_window"`
	MomentumThreshold float64 `mapstructure:"momentum_threshold"`
	MomentumSize      int64   `mapstructure:"momentum_size"`

	ReversionThresholdBps int64 `mapstructure:"reversion_threshold_bps"`
	ReversionSize         int64 `mapstructure:"reversion_size"`

	InstMinTarget int64   `mapstructure:"inst_min_target"`
	InstMaxTarget int64   `mapstructure:"inst_max_target"`
	InstSliceProb float64 `mapstructure:"inst_slice_prob"`
	InstSliceSize int64   `mapstructure:"inst_slice_size"`
	InstCooldown  uint64  `mapstructure:"inst_cooldown"`

	RetailTradeProb float64 `mapstructure:"retail_trade_prob"`
	RetailMaxSize   int64   `mapstructure:"retail_max_size"`
	RetailNewsBoost float64 `mapstructure:"retail_news_boost"`

	SpoofSize        int64  `mapstructure:"spoof_size"`
	SpoofOffsetBps   int64  `mapstructure:"spoof_offset_bps"`
	SpoofHoldTicks   uint64 `mapstructure:"spoof_hold_ticks"`
	SpoofGenuineSize int64  `mapstructure:"spoof_genuine_size"`

	ArbThresholdBps int64 `mapstructure:"arb_threshold_bps"`
	ArbSize         int64 `mapstructure:"arb_size"`
}

// Default is the profile used when no config file is present: one
// instrument and a small mixed crowd, sized so a full session runs in
// well under a second.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              3000,
			RateLimitRequests: 100,
			RateLimitSeconds:  10,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
		Session: SessionConfig{
			Name:              "default",
			Seed:              42,
			ReturnsWindow:     32,
			TradeHistoryLimit: 1000,
			Schedule: ScheduleConfig{
				PreOpenTicks:        10,
				OpeningAuctionTicks: 5,
				ClosingAuctionTicks: 5,
				SessionTicks:        1000,
			},
			Fees: FeesConfig{
				MakerBps: -1,
				TakerBps: 3,
			},
			Instruments: []InstrumentConfig{
				{
					Symbol:           "SIMA",
					Reference:        10000,
					BandBps:          500,
					HaltBandBps:      1000,
					AuctionTicks:     10,
					HaltTicks:        20,
					DefaultNewsDecay: "LINEAR",
				},
			},
			Participants: []ParticipantConfig{
				{Name: "mm", Type: "MARKET_MAKER", Tier: "FAST", Count: 2, MaxPosition: 5000, MaxLoss: 2000000},
				{Name: "hft", Type: "HFT", Tier: "COLOCATED", Count: 2, MaxPosition: 1500, MaxLoss: 1000000},
				{Name: "noise", Type: "NOISE", Tier: "MEDIUM", Count: 6},
				{Name: "momentum", Type: "MOMENTUM", Tier: "FAST", Count: 2, MaxPosition: 4000},
				{Name: "reversion", Type: "MEAN_REVERSION", Tier: "MEDIUM", Count: 2, MaxPosition: 4000},
				{Name: "institutional", Type: "INSTITUTIONAL", Tier: "SLOW", Count: 1},
				{Name: "retail", Type: "RETAIL", Tier: "SLOW", Count: 4},
				{Name: "spoofer", Type: "SPOOFER", Tier: "FAST", Count: 1, MaxLoss: 500000},
				{Name: "arb", Type: "ARBITRAGEUR", Tier: "COLOCATED", Count: 1, MaxPosition: 2000},
			},
			Policy: defaultPolicyConfig(),
		},
	}
}

func defaultPolicyConfig() PolicyConfig {
	params := agents.DefaultPolicyParams()
	return PolicyConfig{
		MMSpreadBps:    params.MMSpreadBps,
		MMQuoteSize:    params.MMQuoteSize,
		MMMaxInventory: params.MMMaxInventory,
		MMRequoteTicks: params.MMRequoteTicks,

		HFTSize:      params.HFTSize,
		HFTMinSpread: params.HFTMinSpread,

		NoiseTradeProb:  params.NoiseTradeProb,
		NoiseMarketProb: params.NoiseMarketProb,
		NoiseMaxSize:    params.NoiseMaxSize,
		NoiseBandBps:    params.NoiseBandBps,
		NoiseDriftVol:   params.NoiseDriftVol,

		MomentumWindow:    params.MomentumWindow,
		MomentumThreshold: params.MomentumThreshold,
		MomentumSize:      params.MomentumSize,

		ReversionThresholdBps: params.ReversionThresholdBps,
		ReversionSize:         params.ReversionSize,

		InstMinTarget: params.InstMinTarget,
		InstMaxTarget: params.InstMaxTarget,
		InstSliceProb: params.InstSliceProb,
		InstSliceSize: params.InstSliceSize,
		InstCooldown:  params.InstCooldown,

		RetailTradeProb: params.RetailTradeProb,
		RetailMaxSize:   params.RetailMaxSize,
		RetailNewsBoost: params.RetailNewsBoost,

		SpoofSize:        params.SpoofSize,
		SpoofOffsetBps:   params.SpoofOffsetBps,
		SpoofHoldTicks:   params.SpoofHoldTicks,
		SpoofGenuineSize: params.SpoofGenuineSize,

		ArbThresholdBps: params.ArbThresholdBps,
		ArbSize:         params.ArbSize,
	}
}

// Load reads the profile from an optional YAML file with MARKETSIM_*
// environment overrides on top. An explicit path must exist; the implicit
// search locations may not.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("MARKETSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults registers scalar keys so AutomaticEnv can see them; the
// values repeat Default() on purpose so both paths agree.
func bindDefaults(v *viper.Viper) {
	defaults := Default()
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.rate_limit_requests", defaults.Server.RateLimitRequests)
	v.SetDefault("server.rate_limit_seconds", defaults.Server.RateLimitSeconds)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.pretty", defaults.Log.Pretty)
	v.SetDefault("session.name", defaults.Session.Name)
	v.SetDefault("session.seed", defaults.Session.Seed)
	v.SetDefault("session.returns_window", defaults.Session.ReturnsWindow)
	v.SetDefault("session.trade_history_limit", defaults.Session.TradeHistoryLimit)
	v.SetDefault("session.schedule.pre_open_ticks", defaults.Session.Schedule.PreOpenTicks)
	v.SetDefault("session.schedule.opening_auction_ticks", defaults.Session.Schedule.OpeningAuctionTicks)
	v.SetDefault("session.schedule.closing_auction_ticks", defaults.Session.Schedule.ClosingAuctionTicks)
	v.SetDefault("session.schedule.session_ticks", defaults.Session.Schedule.SessionTicks)
	v.SetDefault("session.fees.maker_bps", defaults.Session.Fees.MakerBps)
	v.SetDefault("session.fees.taker_bps", defaults.Session.Fees.TakerBps)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Session.Schedule.SessionTicks == 0 {
		return fmt.Errorf("session_ticks must be positive")
	}
	if len(c.Session.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	for _, instrument := range c.Session.Instruments {
		if instrument.Symbol == "" {
			return fmt.Errorf("instrument symbol must not be empty")
		}
		if instrument.Reference <= 0 {
			return fmt.Errorf("instrument %s: reference price must be positive", instrument.Symbol)
		}
		if instrument.BandBps < 0 || instrument.HaltBandBps < 0 {
			return fmt.Errorf("instrument %s: bands must not be negative", instrument.Symbol)
		}
		switch market.DecayMode(instrument.DefaultNewsDecay) {
		case "", market.DecayLinear, market.DecayExponential:
		default:
			return fmt.Errorf("instrument %s: default_news_decay must be LINEAR or EXPONENTIAL", instrument.Symbol)
		}
	}
	for _, participant := range c.Session.Participants {
		if participant.Count < 0 {
			return fmt.Errorf("participant %s: count must not be negative", participant.Name)
		}
	}
	if c.Session.ReturnsWindow <= 0 {
		return fmt.Errorf("returns_window must be positive")
	}
	if c.Session.TradeHistoryLimit <= 0 {
		return fmt.Errorf("trade_history_limit must be positive")
	}
	return nil
}

// MarketSchedule converts the tick counts into the phase timetable.
func (c ScheduleConfig) MarketSchedule() market.Schedule {
	return market.Schedule{
		PreOpenTicks:        c.PreOpenTicks,
		OpeningAuctionTicks: c.OpeningAuctionTicks,
		ClosingAuctionTicks: c.ClosingAuctionTicks,
		SessionTicks:        c.SessionTicks,
	}
}

func (c FeesConfig) FeeSchedule() analytics.FeeSchedule {
	return analytics.FeeSchedule{
		MakerBps: c.MakerBps,
		TakerBps: c.TakerBps,
	}
}

// PolicyParams converts the tuning block for the agents package.
func (c PolicyConfig) PolicyParams() agents.PolicyParams {
	return agents.PolicyParams{
		MMSpreadBps:    c.MMSpreadBps,
		MMQuoteSize:    c.MMQuoteSize,
		MMMaxInventory: c.MMMaxInventory,
		MMRequoteTicks: c.MMRequoteTicks,

		HFTSize:      c.HFTSize,
		HFTMinSpread: c.HFTMinSpread,

		NoiseTradeProb:  c.NoiseTradeProb,
		NoiseMarketProb: c.NoiseMarketProb,
		NoiseMaxSize:    c.NoiseMaxSize,
		NoiseBandBps:    c.NoiseBandBps,
		NoiseDriftVol:   c.NoiseDriftVol,

		MomentumWindow:    c.MomentumWindow,
		MomentumThreshold: c.MomentumThreshold,
		MomentumSize:      c.MomentumSize,

		ReversionThresholdBps: c.ReversionThresholdBps,
		ReversionSize:         c.ReversionSize,

		InstMinTarget: c.InstMinTarget,
		InstMaxTarget: c.InstMaxTarget,
		InstSliceProb: c.InstSliceProb,
		InstSliceSize: c.InstSliceSize,
		InstCooldown:  c.InstCooldown,

		RetailTradeProb: c.RetailTradeProb,
		RetailMaxSize:   c.RetailMaxSize,
		RetailNewsBoost: c.RetailNewsBoost,

		SpoofSize:        c.SpoofSize,
		SpoofOffsetBps:   c.SpoofOffsetBps,
		SpoofHoldTicks:   c.SpoofHoldTicks,
		SpoofGenuineSize: c.SpoofGenuineSize,

		ArbThresholdBps: c.ArbThresholdBps,
		ArbSize:         c.ArbSize,
	}
}

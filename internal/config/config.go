package config

import (
	"math/big"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/ligun0805/wallet-sweep/internal/retry"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

// Settings keeps all configuration options of a sweep run.
type Settings struct {
	RPCURLs         []string
	ChainID         int64 // 0 means use whatever the endpoint reports
	DestinationFile string
	KeysFile        string
	TxLogFile       string
	ErrorLogFile    string
	Workers         int

	FeeMode         string
	TxType          string
	MaxFeeGwei      string
	PriorityFeeGwei string
	GasLimit        uint64
	FlatReserveETH  string

	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	ProbeTimeout   time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RPCRateLimit   float64

	LogLevel    string
	LogPretty   bool
	LogFile     string
	UI          string
	MetricsAddr string
}

type key struct {
	name string
	def  any
	env  []string
}

// Every key is read from its UPPER_CASE and lower_case env names; a few
// accept an older single-value name as well.
var keys = []key{
	{"rpc_urls", "https://carrot.megaeth.com/rpc", []string{"RPC_URLS", "rpc_urls", "RPC_URL", "rpc_url"}},
	{"chain_id", 6342, nil},
	{"destination_file", "target_address.txt", []string{"DESTINATION_FILE", "destination_file", "TARGET_FILE", "target_file"}},
	{"keys_file", "private_keys.txt", nil},
	{"tx_log_file", "transactions.csv", nil},
	{"error_log_file", "errors.log", nil},
	{"workers", core.DefaultWorkers, nil},
	{"fee_mode", string(core.FeeModeGas), nil},
	{"tx_type", string(core.TxDynamic), nil},
	{"max_fee_gwei", "0.0025", nil},
	{"priority_fee_gwei", "0.001", nil},
	{"gas_limit", core.DefaultGasLimit, nil},
	{"flat_reserve_eth", "0.001", nil},
	{"confirm_timeout", core.DefaultConfirmTimeout, nil},
	{"poll_interval", core.DefaultPollInterval, nil},
	{"probe_timeout", 5 * time.Second, nil},
	{"retry_attempts", 3, nil},
	{"retry_base_delay", 500 * time.Millisecond, nil},
	{"retry_max_delay", 5 * time.Second, nil},
	{"rpc_rate_limit", 0.0, nil},
	{"log_level", "info", nil},
	{"log_pretty", true, nil},
	{"log_file", "", nil},
	{"ui", "auto", nil},
	{"metrics_addr", "", nil},
}

var uiModes = map[string]bool{"auto": true, "plain": true, "color": true, "dashboard": true}

// LoadDotenv loads .env and lets .env.local override it. Missing files are fine.
func LoadDotenv() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
}

// New returns a viper instance with defaults and env bindings.
func New() *viper.Viper {
	v := viper.New()
	for _, k := range keys {
		v.SetDefault(k.name, k.def)
		env := k.env
		if env == nil {
			env = []string{strings.ToUpper(k.name), k.name}
		}
		_ = v.BindEnv(append([]string{k.name}, env...)...)
	}
	return v
}

// Defaults returns the built-in settings, ignoring env and files.
func Defaults() Settings {
	v := viper.New()
	for _, k := range keys {
		v.SetDefault(k.name, k.def)
	}
	st, _ := Load(v)
	return st
}

// Override applies string values by key on top of st and validates the
// result. The GUI uses it so form input goes through Load like env does.
func Override(st Settings, values map[string]string) (Settings, error) {
	v := viper.New()
	for k, val := range st.asMap() {
		v.SetDefault(k, val)
	}
	for k, val := range values {
		if _, ok := st.asMap()[k]; !ok {
			return Settings{}, errors.Errorf("unknown setting %q", k)
		}
		v.Set(k, val)
	}
	return Load(v)
}

func (s Settings) asMap() map[string]any {
	return map[string]any{
		"rpc_urls":          strings.Join(s.RPCURLs, ","),
		"chain_id":          s.ChainID,
		"destination_file":  s.DestinationFile,
		"keys_file":         s.KeysFile,
		"tx_log_file":       s.TxLogFile,
		"error_log_file":    s.ErrorLogFile,
		"workers":           s.Workers,
		"fee_mode":          s.FeeMode,
		"tx_type":           s.TxType,
		"max_fee_gwei":      s.MaxFeeGwei,
		"priority_fee_gwei": s.PriorityFeeGwei,
		"gas_limit":         s.GasLimit,
		"flat_reserve_eth":  s.FlatReserveETH,
		"confirm_timeout":   s.ConfirmTimeout,
		"poll_interval":     s.PollInterval,
		"probe_timeout":     s.ProbeTimeout,
		"retry_attempts":    s.RetryAttempts,
		"retry_base_delay":  s.RetryBaseDelay,
		"retry_max_delay":   s.RetryMaxDelay,
		"rpc_rate_limit":    s.RPCRateLimit,
		"log_level":         s.LogLevel,
		"log_pretty":        s.LogPretty,
		"log_file":          s.LogFile,
		"ui":                s.UI,
		"metrics_addr":      s.MetricsAddr,
	}
}

// BindFlags lets command line flags win over env and config file.
// Flags are looked up by key name with '_' replaced by '-'.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, k := range keys {
		if f := fs.Lookup(strings.ReplaceAll(k.name, "_", "-")); f != nil {
			if err := v.BindPFlag(k.name, f); err != nil {
				return errors.Wrapf(err, "bind flag %s", f.Name)
			}
		}
	}
	return nil
}

// ReadFile merges a yaml/toml/json config file under env and flags.
func ReadFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	v.SetConfigFile(path)
	return errors.Wrapf(v.ReadInConfig(), "read config %s", path)
}

// Load resolves every setting and validates it. No network I/O happens here.
func Load(v *viper.Viper) (Settings, error) {
	st := Settings{
		RPCURLs:         getList(v, "rpc_urls"),
		ChainID:         v.GetInt64("chain_id"),
		DestinationFile: v.GetString("destination_file"),
		KeysFile:        v.GetString("keys_file"),
		TxLogFile:       v.GetString("tx_log_file"),
		ErrorLogFile:    v.GetString("error_log_file"),
		Workers:         v.GetInt("workers"),
		FeeMode:         strings.ToLower(strings.TrimSpace(v.GetString("fee_mode"))),
		TxType:          strings.ToLower(strings.TrimSpace(v.GetString("tx_type"))),
		MaxFeeGwei:      v.GetString("max_fee_gwei"),
		PriorityFeeGwei: v.GetString("priority_fee_gwei"),
		GasLimit:        v.GetUint64("gas_limit"),
		FlatReserveETH:  v.GetString("flat_reserve_eth"),
		ConfirmTimeout:  v.GetDuration("confirm_timeout"),
		PollInterval:    v.GetDuration("poll_interval"),
		ProbeTimeout:    v.GetDuration("probe_timeout"),
		RetryAttempts:   v.GetInt("retry_attempts"),
		RetryBaseDelay:  v.GetDuration("retry_base_delay"),
		RetryMaxDelay:   v.GetDuration("retry_max_delay"),
		RPCRateLimit:    v.GetFloat64("rpc_rate_limit"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		LogPretty:       v.GetBool("log_pretty"),
		LogFile:         v.GetString("log_file"),
		UI:              strings.ToLower(strings.TrimSpace(v.GetString("ui"))),
		MetricsAddr:     v.GetString("metrics_addr"),
	}
	if err := st.Validate(); err != nil {
		return Settings{}, err
	}
	return st, nil
}

func (s Settings) Validate() error {
	if len(s.RPCURLs) == 0 {
		return errors.New("rpc_urls is empty")
	}
	if s.ChainID < 0 {
		return errors.New("chain_id must not be negative")
	}
	if s.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	if s.RetryAttempts < 1 {
		return errors.Errorf("retry_attempts must be at least 1, got %d", s.RetryAttempts)
	}
	if s.RPCRateLimit < 0 {
		return errors.New("rpc_rate_limit must not be negative")
	}
	if !uiModes[s.UI] {
		return errors.Errorf("unknown ui mode %q", s.UI)
	}
	for name, p := range map[string]string{"destination_file": s.DestinationFile, "keys_file": s.KeysFile, "tx_log_file": s.TxLogFile, "error_log_file": s.ErrorLogFile} {
		if strings.TrimSpace(p) == "" {
			return errors.Errorf("%s is empty", name)
		}
	}
	f, err := s.Fees()
	if err != nil {
		return err
	}
	return errors.Wrap(f.Validate(), "fees")
}

// Fees converts the gwei/ETH strings into wei.
func (s Settings) Fees() (core.Fees, error) {
	maxFee, err := core.ParseGwei(s.MaxFeeGwei)
	if err != nil {
		return core.Fees{}, errors.Wrap(err, "max_fee_gwei")
	}
	tip, err := core.ParseGwei(s.PriorityFeeGwei)
	if err != nil {
		return core.Fees{}, errors.Wrap(err, "priority_fee_gwei")
	}
	var flat *big.Int
	if core.FeeMode(s.FeeMode) == core.FeeModeFlat {
		if flat, err = core.ParseETH(s.FlatReserveETH); err != nil {
			return core.Fees{}, errors.Wrap(err, "flat_reserve_eth")
		}
	}
	return core.Fees{
		Mode:                 core.FeeMode(s.FeeMode),
		TxType:               core.TxType(s.TxType),
		GasLimit:             s.GasLimit,
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: tip,
		FlatReserve:          flat,
	}, nil
}

func (s Settings) RetryPolicy() retry.Policy {
	p := retry.Default()
	p.MaxAttempts = s.RetryAttempts
	p.BaseDelay = s.RetryBaseDelay
	p.MaxDelay = s.RetryMaxDelay
	return p
}

// Limiter returns nil when rpc_rate_limit is 0.
func (s Settings) Limiter() *rate.Limiter {
	if s.RPCRateLimit <= 0 {
		return nil
	}
	burst := int(s.RPCRateLimit)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.RPCRateLimit), burst)
}

// getList accepts a comma separated string (env, flags) or a list (config file).
func getList(v *viper.Viper, name string) []string {
	if raw, ok := v.Get(name).([]any); ok {
		out := make([]string, 0, len(raw))
		for _, x := range raw {
			out = append(out, splitCSV(cast.ToString(x))...)
		}
		return out
	}
	return splitCSV(v.GetString(name))
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

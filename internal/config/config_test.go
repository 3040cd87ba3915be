package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/wallet-sweep/internal/config"
	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

func TestDefaults(t *testing.T) {
	st, err := config.Load(config.New())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://carrot.megaeth.com/rpc"}, st.RPCURLs)
	assert.Equal(t, int64(6342), st.ChainID)
	assert.Equal(t, 5, st.Workers)
	assert.Equal(t, "target_address.txt", st.DestinationFile)
	assert.Equal(t, "private_keys.txt", st.KeysFile)
	assert.Equal(t, "transactions.csv", st.TxLogFile)
	assert.Equal(t, "errors.log", st.ErrorLogFile)
	assert.Equal(t, 2*time.Minute, st.ConfirmTimeout)
	assert.Nil(t, st.Limiter())

	fees, err := st.Fees()
	require.NoError(t, err)
	assert.Equal(t, core.FeeModeGas, fees.Mode)
	assert.Equal(t, "2500000", fees.MaxFeePerGas.String())
	assert.Equal(t, "1000000", fees.MaxPriorityFeePerGas.String())
	assert.Equal(t, uint64(21000), fees.GasLimit)
	assert.Equal(t, "52500000000", fees.Reserve().String())

	p := st.RetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, p.BaseDelay)
}

func TestEnvUpperAndLower(t *testing.T) {
	t.Setenv("RPC_URLS", "https://a.example, https://b.example ,,")
	t.Setenv("workers", "9")
	t.Setenv("FEE_MODE", "flat")
	t.Setenv("flat_reserve_eth", "0.002")
	t.Setenv("RPC_RATE_LIMIT", "20")

	st, err := config.Load(config.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, st.RPCURLs)
	assert.Equal(t, 9, st.Workers)
	assert.NotNil(t, st.Limiter())

	fees, err := st.Fees()
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000", fees.Reserve().String())
}

func TestDefaultsIgnoreEnv(t *testing.T) {
	t.Setenv("WORKERS", "0")
	_, err := config.Load(config.New())
	require.Error(t, err)

	st := config.Defaults()
	assert.Equal(t, 5, st.Workers)
	assert.NoError(t, st.Validate())
}

func TestOverride(t *testing.T) {
	base := config.Defaults()
	base.ConfirmTimeout = 30 * time.Second

	st, err := config.Override(base, map[string]string{"workers": "12", "rpc_urls": "http://a, http://b", "fee_mode": "flat"})
	require.NoError(t, err)
	assert.Equal(t, 12, st.Workers)
	assert.Equal(t, []string{"http://a", "http://b"}, st.RPCURLs)
	assert.Equal(t, "flat", st.FeeMode)
	assert.Equal(t, 30*time.Second, st.ConfirmTimeout, "untouched keys keep the base value")

	_, err = config.Override(base, map[string]string{"workers": "0"})
	assert.Error(t, err)
	_, err = config.Override(base, map[string]string{"nope": "1"})
	assert.Error(t, err)
}

func TestLegacySingleURLKey(t *testing.T) {
	t.Setenv("RPC_URL", "https://single.example")
	st, err := config.Load(config.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://single.example"}, st.RPCURLs)
}

func TestFlagsWinOverEnv(t *testing.T) {
	t.Setenv("WORKERS", "2")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("workers", 5, "")
	fs.String("keys-file", "private_keys.txt", "")
	require.NoError(t, fs.Parse([]string{"--workers=7", "--keys-file=k.txt"}))

	v := config.New()
	require.NoError(t, config.BindFlags(v, fs))
	st, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, 7, st.Workers)
	assert.Equal(t, "k.txt", st.KeysFile)
}

func TestConfigFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sweep.yaml")
	body := "rpc_urls:\n  - https://one.example\n  - https://two.example\nchain_id: 42069\ntx_type: legacy\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))

	v := config.New()
	require.NoError(t, config.ReadFile(v, p))
	st, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://one.example", "https://two.example"}, st.RPCURLs)
	assert.Equal(t, int64(42069), st.ChainID)
	assert.Equal(t, "legacy", st.TxType)
}

func TestValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"workers":      {"WORKERS": "0"},
		"fee mode":     {"FEE_MODE": "auction"},
		"bad gwei":     {"MAX_FEE_GWEI": "cheap"},
		"tip over cap": {"PRIORITY_FEE_GWEI": "1"},
		"flat too low": {"FEE_MODE": "flat", "FLAT_RESERVE_ETH": "0.00000000001"},
		"ui":           {"UI": "fancy"},
		"no endpoints": {"RPC_URLS": " , "},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.Load(config.New())
			assert.Error(t, err)
		})
	}
}

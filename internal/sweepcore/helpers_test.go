package sweepcore_test

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/ligun0805/wallet-sweep/internal/sweepcore"
)

func TestParseUnits(t *testing.T) {
	v, err := core.ParseETH("0.001")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000", v.String())

	v, err = core.ParseGwei("0.0025")
	require.NoError(t, err)
	assert.Equal(t, "2500000", v.String())

	_, err = core.ParseGwei("0.0000000001")
	assert.Error(t, err)
	_, err = core.ParseETH("-1")
	assert.Error(t, err)
	_, err = core.ParseETH("abc")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.009000", core.FormatETH(big.NewInt(9_000_000_000_000_000)))
	assert.Equal(t, "0.0025", core.FormatGwei(big.NewInt(2_500_000)))
	assert.Equal(t, "0", core.FormatETH(nil))
}

func TestSendAmount(t *testing.T) {
	reserve := big.NewInt(100)
	cases := []struct {
		balance int64
		want    int64
	}{
		{0, 0},
		{50, 0},
		{100, 0},
		{101, 1},
		{1000, 900},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.balance), func(t *testing.T) {
			bal := big.NewInt(tc.balance)
			got := core.SendAmount(bal, reserve)
			assert.Equal(t, tc.want, got.Int64())
			assert.Equal(t, tc.balance, bal.Int64(), "input must not be modified")
		})
	}
}

func TestFeesReserve(t *testing.T) {
	f := testFees(t)
	assert.Equal(t, "52500000000", f.Reserve().String())
	require.NoError(t, f.Validate())

	f.Mode = core.FeeModeFlat
	f.FlatReserve = eth(t, "0.001")
	assert.Equal(t, eth(t, "0.001").String(), f.Reserve().String())
	require.NoError(t, f.Validate())

	f.FlatReserve = big.NewInt(1)
	assert.ErrorContains(t, f.Validate(), "below the gas cost")
}

func TestFeesValidate(t *testing.T) {
	f := testFees(t)
	f.MaxPriorityFeePerGas = gwei(t, "1")
	assert.ErrorContains(t, f.Validate(), "exceeds fee cap")

	f = testFees(t)
	f.Mode = "auction"
	assert.Error(t, f.Validate())

	f = testFees(t)
	f.GasLimit = 0
	assert.Error(t, f.Validate())
}

func TestCredentialHidesKey(t *testing.T) {
	prv, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	keyHex := fmt.Sprintf("%x", gethcrypto.FromECDSA(prv))

	c, err := core.ParseCredential("0x" + keyHex)
	require.NoError(t, err)
	assert.Equal(t, gethcrypto.PubkeyToAddress(prv.PublicKey), c.Address())

	for _, s := range []string{fmt.Sprint(c), fmt.Sprintf("%v", c), fmt.Sprintf("%+v", c), fmt.Sprintf("%#v", c)} {
		assert.False(t, strings.Contains(strings.ToLower(s), keyHex), "formatted credential leaks the key: %s", s)
	}

	_, err = core.ParseCredential("zz" + keyHex[2:])
	require.Error(t, err)
	assert.NotContains(t, err.Error(), keyHex[2:])

	_, err = core.ParseCredential("  ")
	assert.Error(t, err)
}

package loader_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/wallet-sweep/internal/loader"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func newKeyHex(t *testing.T) string {
	t.Helper()
	prv, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	return fmt.Sprintf("%x", gethcrypto.FromECDSA(prv))
}

func TestLoadDestination(t *testing.T) {
	p := writeFile(t, "target_address.txt", "\n  0x52908400098527886E0F7030069857D2E4169EE7  \n")
	addr, err := loader.LoadDestination(p)
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", addr.Hex())
}

func TestLoadDestinationInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"short":   "0x1234",
		"garbage": "not-an-address",
		"empty":   "\n\n",
		"zero":    "0x0000000000000000000000000000000000000000",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := loader.LoadDestination(writeFile(t, "d.txt", body))
			assert.ErrorIs(t, err, loader.ErrInvalidAddress)
		})
	}
	_, err := loader.LoadDestination(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestLoadCredentials(t *testing.T) {
	k1, k2 := newKeyHex(t), newKeyHex(t)
	body := strings.Join([]string{"# wallets", "", "0x" + k1, "   ", k2, "0x" + k1}, "\n")
	creds, err := loader.LoadCredentials(writeFile(t, "keys.txt", body))
	require.NoError(t, err)
	require.Len(t, creds, 2, "duplicate key is dropped")
	assert.NotEqual(t, creds[0].Address(), creds[1].Address())
}

func TestLoadCredentialsReportsLineNotSecret(t *testing.T) {
	good := newKeyHex(t)
	bad := "0x" + strings.Repeat("g", 64)
	_, err := loader.LoadCredentials(writeFile(t, "keys.txt", good+"\n\n"+bad+"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.NotContains(t, err.Error(), strings.Repeat("g", 64))
	assert.NotContains(t, err.Error(), good)
}

func TestLoadCredentialsEmpty(t *testing.T) {
	_, err := loader.LoadCredentials(writeFile(t, "keys.txt", "# nothing\n\n"))
	assert.ErrorIs(t, err, loader.ErrNoCredentials)
}

func TestReadLinesStripsBOM(t *testing.T) {
	lines, err := loader.ReadLines(strings.NewReader("\ufeffabc\r\n\r\n# x\ndef"))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, loader.Line{No: 1, Text: "abc"}, lines[0])
	assert.Equal(t, loader.Line{No: 4, Text: "def"}, lines[1])
}

package profile

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/crypto"
	"github.com/jobfill/jobfill/internal/domain"
)

var sealKey = []byte("0123456789abcdef0123456789abcdef")

func TestSealedKV_Contract(t *testing.T) {
	kv, err := Seal(NewMemoryKV(), sealKey)
	require.NoError(t, err)
	exerciseKV(t, kv)
}

func TestSealedKV_StoresCiphertext(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryKV()
	kv, err := Seal(mem, sealKey)
	require.NoError(t, err)

	require.NoError(t, kv.Set(ctx, DefaultKey, []byte(`{"email":"ada@example.com"}`)))

	raw, err := mem.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ada@example.com")
	assert.Contains(t, string(raw), `"sealed":"aes-256-gcm"`)

	other, err := Seal(mem, []byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	_, err = other.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func TestSealedKV_ReadsPlainRecords(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryKV()
	require.NoError(t, mem.Set(ctx, DefaultKey, []byte(`{"firstName":"Ada"}`)))

	kv, err := Seal(mem, sealKey)
	require.NoError(t, err)
	m := NewManager(kv)

	assert.Equal(t, "Ada", m.Get(ctx)["firstName"])
	require.NoError(t, m.UpdateField(ctx, "city", "London"))

	raw, err := mem.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sealed":"aes-256-gcm"`, "the next write seals the record")
}

func TestSealedKV_UnknownSeal(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryKV()
	require.NoError(t, mem.Set(ctx, DefaultKey, []byte(`{"sealed":"rot13","data":"x"}`)))

	kv, err := Seal(mem, sealKey)
	require.NoError(t, err)
	_, err = kv.Get(ctx, DefaultKey)
	assert.ErrorContains(t, err, "unsupported seal")

	// The manager falls back to defaults instead of failing.
	assert.Equal(t, domain.DefaultProfile(), NewManager(kv).Get(ctx))
}

func TestSeal_InvalidKey(t *testing.T) {
	_, err := Seal(NewMemoryKV(), []byte("short"))
	assert.ErrorIs(t, err, crypto.ErrInvalidKey)
}

func TestOpen_Sealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	cfg := &config.Config{Store: config.StoreConfig{
		Backend:       config.StoreFile,
		FilePath:      path,
		EncryptionKey: base64.StdEncoding.EncodeToString(sealKey),
	}}

	kv, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	sealed, ok := kv.(*SealedKV)
	require.True(t, ok)
	assert.Equal(t, "file", sealed.Name())

	cfg.Store.EncryptionKey = "too-short"
	_, err = Open(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, crypto.ErrInvalidKey)
}

package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jobfill/jobfill/internal/crypto"
)

const sealedVersion = "aes-256-gcm"

// envelope is the stored form of a sealed record. It is valid JSON so the
// postgres JSONB column and the s3 JSON objects accept it.
type envelope struct {
	Sealed string `json:"sealed"`
	Data   string `json:"data"`
}

// SealedKV encrypts records before they reach the wrapped backend. Records
// written before encryption was enabled are read back as plain JSON and
// sealed on the next write.
type SealedKV struct {
	Backend
	key []byte
}

// Seal wraps b so stored records are encrypted with key.
func Seal(b Backend, key []byte) (*SealedKV, error) {
	if len(key) != 32 {
		return nil, crypto.ErrInvalidKey
	}
	return &SealedKV{Backend: b, key: key}, nil
}

func (s *SealedKV) Name() string { return backendName(s.Backend) }

func (s *SealedKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var env envelope
	if json.Unmarshal(bytes.TrimSpace(data), &env) != nil || env.Sealed == "" {
		return data, nil
	}
	if env.Sealed != sealedVersion {
		return nil, fmt.Errorf("record %s: unsupported seal %q", key, env.Sealed)
	}
	plain, err := crypto.Decrypt(env.Data, s.key)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", key, err)
	}
	return plain, nil
}

func (s *SealedKV) Set(ctx context.Context, key string, value []byte) error {
	data, err := crypto.Encrypt(value, s.key)
	if err != nil {
		return err
	}
	sealed, err := json.Marshal(envelope{Sealed: sealedVersion, Data: data})
	if err != nil {
		return err
	}
	return s.Backend.Set(ctx, key, sealed)
}

// Health forwards to the wrapped backend when it has a probe.
func (s *SealedKV) Health(ctx context.Context) error {
	if h, ok := s.Backend.(interface{ Health(context.Context) error }); ok {
		return h.Health(ctx)
	}
	return nil
}

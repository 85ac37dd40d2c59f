package profile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
)

type brokenKV struct{ err error }

func (b brokenKV) Get(context.Context, string) ([]byte, error) { return nil, b.err }
func (b brokenKV) Set(context.Context, string, []byte) error   { return b.err }
func (b brokenKV) Remove(context.Context, string) error        { return b.err }

func TestManager_GetDefaultsWhenEmpty(t *testing.T) {
	m := NewManager(NewMemoryKV())

	p := m.Get(context.Background())
	require.NotNil(t, p)
	assert.Len(t, p, len(domain.ProfileSchema))
	assert.Equal(t, "decline", p["veteranStatus"])
	assert.Equal(t, "", p["firstName"])
	assert.True(t, p.IsEmpty())
}

func TestManager_GetDefaultsOnStoreError(t *testing.T) {
	m := NewManager(brokenKV{err: errors.New("disk on fire")})
	assert.Equal(t, domain.DefaultProfile(), m.Get(context.Background()))
}

func TestManager_GetDefaultsOnCorruptRecord(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), DefaultKey, []byte("not json")))

	m := NewManager(kv)
	assert.Equal(t, domain.DefaultProfile(), m.Get(context.Background()))
}

func TestManager_SaveGetClear(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryKV())

	require.NoError(t, m.Save(ctx, domain.Profile{"firstName": "Ada", "gpa": 3.9}))

	p := m.Get(ctx)
	assert.Equal(t, "Ada", p["firstName"])
	assert.Equal(t, 3.9, p["gpa"])
	// Save replaces wholesale; no schema defaults are merged in.
	assert.Len(t, p, 2)

	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, domain.DefaultProfile(), m.Get(ctx))
	require.NoError(t, m.Clear(ctx), "clearing twice")
}

func TestManager_SaveNil(t *testing.T) {
	err := NewManager(NewMemoryKV()).Save(context.Background(), nil)
	assert.Equal(t, domain.ErrCodeInvalidProfile, domain.GetErrorCode(err))
}

func TestManager_SaveStoreError(t *testing.T) {
	cause := errors.New("read-only")
	err := NewManager(brokenKV{err: cause}).Save(context.Background(), domain.Profile{"a": "b"})

	assert.Equal(t, domain.ErrCodeStore, domain.GetErrorCode(err))
	assert.ErrorIs(t, err, cause)
}

func TestManager_CustomKey(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	m := NewManager(kv, WithKey("alt"))
	require.NoError(t, m.Save(ctx, domain.Profile{"email": "a@b.c"}))

	_, err := kv.Get(ctx, DefaultKey)
	assert.ErrorIs(t, err, ErrNotFound)
	data, err := kv.Get(ctx, "alt")
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@b.c"}`, string(data))
}

func TestManager_UpdateField(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		field   string
		value   any
		wantErr bool
	}{
		{name: "free text", field: "firstName", value: "Grace"},
		{name: "categorical choice", field: "gender", value: "non-binary"},
		{name: "categorical blank", field: "sponsorship", value: ""},
		{name: "numeric", field: "gpa", value: 3.7},
		{name: "unknown field", field: "favouriteColour", value: "teal", wantErr: true},
		{name: "categorical outside choices", field: "veteranStatus", value: "maybe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(NewMemoryKV())
			err := m.UpdateField(ctx, tt.field, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.ErrCodeValidation, domain.GetErrorCode(err))
				return
			}
			require.NoError(t, err)

			p := m.Get(ctx)
			assert.Equal(t, tt.value, p[tt.field])
			// The rest of the defaulted record is persisted alongside.
			assert.Len(t, p, len(domain.ProfileSchema))
		})
	}
}

func TestManager_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewManager(NewMemoryKV())
	require.NoError(t, src.Save(ctx, domain.Profile{
		"firstName":   "Ada",
		"lastName":    "Lovelace",
		"sponsorship": "no",
		"gpa":         4.0,
	}))

	data, err := src.Export(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"firstName\": \"Ada\"")

	dst := NewManager(NewMemoryKV())
	require.NoError(t, dst.Save(ctx, domain.Profile{"city": "London"}))
	require.NoError(t, dst.Import(ctx, data))

	assert.Equal(t, src.Get(ctx), dst.Get(ctx))
	_, hasCity := dst.Get(ctx)["city"]
	assert.False(t, hasCity, "import replaces the record wholesale")
}

func TestManager_ImportRejectsNonObjects(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryKV())
	require.NoError(t, m.Save(ctx, domain.Profile{"firstName": "Ada"}))

	for _, in := range []string{`[]`, `"Ada"`, `42`, `null`, ``, `{"firstName":`} {
		t.Run(in, func(t *testing.T) {
			err := m.Import(ctx, []byte(in))
			require.Error(t, err)
			assert.Equal(t, domain.ErrCodeInvalidProfile, domain.GetErrorCode(err))
		})
	}

	assert.Equal(t, "Ada", m.Get(ctx)["firstName"], "failed imports leave the record untouched")
}

func TestDecode(t *testing.T) {
	p, err := Decode([]byte("  {\"phone\": \"555\", \"previouslyWorked\": false}\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.Profile{"phone": "555", "previouslyWorked": false}, p)
}

func TestManager_Backend(t *testing.T) {
	assert.Equal(t, "memory", NewManager(NewMemoryKV()).Backend())
	assert.Equal(t, "custom", NewManager(brokenKV{}).Backend())
}

func TestManager_Metrics(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	m := NewManager(NewMemoryKV(), WithMetrics(metrics))

	m.Get(ctx)
	require.NoError(t, m.Save(ctx, domain.Profile{"a": "b"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProfileStoreOps.WithLabelValues("memory", "get", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProfileStoreOps.WithLabelValues("memory", "set", "success")))
}

func TestManager_SavedRecordIsJSONObject(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, NewManager(kv).Save(ctx, domain.DefaultProfile()))

	data, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Len(t, raw, len(domain.ProfileSchema))
}

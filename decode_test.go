package lazyconf

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverSettings struct {
	Host    string   `json:"host"`
	Port    int      `json:"port"`
	Address string   `json:"address"`
	Tags    []string `json:"tags"`
}

func TestDecode(t *testing.T) {
	tree, err := FromPlain(map[string]any{
		"host": "localhost",
		"port": 8080,
		"tags": []any{"a", "b"},
	})
	require.NoError(t, err)
	require.NoError(t, tree.Derive("address", `host + ":" + string(port)`))

	settings, err := Decode[serverSettings](context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, serverSettings{
		Host:    "localhost",
		Port:    8080,
		Address: "localhost:8080",
		Tags:    []string{"a", "b"},
	}, settings)
}

func TestDecodeHooks(t *testing.T) {
	tree, err := FromPlain(map[string]any{"host": "localhost", "port": 80})
	require.NoError(t, err)

	settings, err := Decode(context.Background(), tree,
		DecodePreHook[serverSettings](func(payload map[string]any) (map[string]any, error) {
			payload["port"] = 443
			return payload, nil
		}),
		DecodePostHook(func(s *serverSettings) error {
			s.Address = s.Host + ":tls"
			return nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, 443, settings.Port)
	assert.Equal(t, "localhost:tls", settings.Address)

	port, err := tree.Get("port")
	require.NoError(t, err)
	assert.Equal(t, 80, port)
}

func TestDecodeStrictAndNumbers(t *testing.T) {
	tree, err := FromPlain(map[string]any{"host": "h", "unknown": 1})
	require.NoError(t, err)

	_, err = Decode(context.Background(), tree, DecodeDisallowUnknownFields[serverSettings]())
	assert.Error(t, err)

	numbers, err := FromPlain(map[string]any{"n": 12})
	require.NoError(t, err)
	out, err := Decode(context.Background(), numbers, DecodeUseNumber[map[string]any]())
	require.NoError(t, err)
	assert.Equal(t, json.Number("12"), out["n"])
}

func TestDecodePropagatesEvaluationErrors(t *testing.T) {
	boom := errors.New("boom")
	m := New()
	require.NoError(t, m.Register("host", func(context.Context) (any, error) {
		return nil, boom
	}))

	_, err := Decode[serverSettings](context.Background(), m)
	assert.ErrorIs(t, err, boom)

	_, err = Decode[serverSettings](context.Background(), nil)
	assert.Error(t, err)
}

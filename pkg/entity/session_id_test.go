package entity_test

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/limbo/studytrack/pkg/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIDKinds(t *testing.T) {
	confirmed := entity.ConfirmedID("8d3f")
	assert.False(t, confirmed.IsPending())
	assert.Equal(t, "8d3f", confirmed.String())

	pending := entity.NewPendingID()
	assert.True(t, pending.IsPending())
	assert.True(t, strings.HasPrefix(pending.String(), entity.TempIDPrefix))
	assert.NotEqual(t, pending, entity.NewPendingID())

	assert.True(t, entity.SessionID{}.IsZero())
}

func TestParseSessionID(t *testing.T) {
	testCases := []struct {
		Desc    string
		Input   string
		Pending bool
		Value   string
		IsError bool
	}{
		{Desc: "confirmed", Input: "abc", Value: "abc"},
		{Desc: "pending", Input: "temp_123", Pending: true, Value: "123"},
		{Desc: "empty", Input: "", IsError: true},
		{Desc: "bare prefix", Input: "temp_", IsError: true},
	}
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			id, err := entity.ParseSessionID(tc.Input)
			if tc.IsError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Pending, id.IsPending())
			assert.Equal(t, tc.Value, id.Value())
			assert.Equal(t, tc.Input, id.String())
		})
	}
}

func TestSessionIDJSON(t *testing.T) {
	t.Run("pending keeps its kind", func(t *testing.T) {
		data, err := sonic.Marshal(entity.PendingID("tok"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"pending","value":"tok"}`, string(data))
		var id entity.SessionID
		require.NoError(t, sonic.Unmarshal(data, &id))
		assert.Equal(t, entity.PendingID("tok"), id)
	})
	t.Run("unknown kind", func(t *testing.T) {
		var id entity.SessionID
		err := sonic.Unmarshal([]byte(`{"kind":"other","value":"x"}`), &id)
		assert.Error(t, err)
	})
}

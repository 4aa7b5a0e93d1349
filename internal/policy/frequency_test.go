package policy

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"fanloyalty/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	at := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		frequency string
		ctx       Context
		want      *string
		wantErr   error
	}{
		{name: "once ever", frequency: model.FrequencyOnceEver, ctx: Context{At: at}, want: strPtr("ever")},
		{name: "once per day utc", frequency: model.FrequencyOncePerDay, ctx: Context{At: at}, want: strPtr("day:2026-10-18")},
		{name: "once per match", frequency: model.FrequencyOncePerMatch, ctx: Context{MatchKey: " derby-2026 "}, want: strPtr("match:derby-2026")},
		{name: "once per match without key", frequency: model.FrequencyOncePerMatch, ctx: Context{}, wantErr: ErrMatchKeyRequired},
		{name: "unlimited", frequency: model.FrequencyUnlimited, ctx: Context{At: at}, want: nil},
		{name: "unknown", frequency: "twice_per_fortnight", wantErr: ErrUnknownFrequency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Key(tt.frequency, tt.ctx)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOncePerDayUsesReferenceTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 23:30 UTC on the 18th is already the 19th in Tokyo
	at := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)

	utcKey, err := Key(model.FrequencyOncePerDay, Context{At: at, Location: time.UTC})
	require.NoError(t, err)
	tokyoKey, err := Key(model.FrequencyOncePerDay, Context{At: at, Location: tokyo})
	require.NoError(t, err)

	assert.Equal(t, "day:2026-10-18", *utcKey)
	assert.Equal(t, "day:2026-10-19", *tokyoKey)

	// the caller's own offset is irrelevant, only the instant matters
	local := at.In(time.FixedZone("fan", -8*3600))
	sameKey, err := Key(model.FrequencyOncePerDay, Context{At: local, Location: time.UTC})
	require.NoError(t, err)
	assert.Equal(t, *utcKey, *sameKey)
}

func TestRegister(t *testing.T) {
	Register("once_per_week", func(c Context) (*string, error) {
		year, week := c.At.ISOWeek()
		return keyOf(fmt.Sprintf("week:%d-%02d", year, week)), nil
	})
	t.Cleanup(func() {
		mu.Lock()
		delete(rules, "once_per_week")
		mu.Unlock()
	})

	key, err := Key("once_per_week", Context{At: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, "week:2026-02", *key)
}

func strPtr(s string) *string {
	return &s
}

package telegram_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgard/gatekeeper/internal/telegram"
)

func TestParseHandle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"mention", "@Shop", "@shop", true},
		{"mention in sentence", "my group is @my_group thanks", "@my_group", true},
		{"t.me link", "https://t.me/SampleGroup", "@samplegroup", true},
		{"telegram.me link", "telegram.me/sample", "@sample", true},
		{"mention wins over link", "@first t.me/second", "@first", true},
		{"invite link", "https://t.me/joinchat/AAAA", "", false},
		{"private invite", "https://t.me/+AbCdEf", "", false},
		{"plain word", "shop", "", false},
		{"empty", "", "", false},
		{"bare at", "@", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := telegram.ParseHandle(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroupKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "@shop", telegram.GroupKey("Shop", -100123))
	assert.Equal(t, "@shop", telegram.GroupKey("@shop", -100123))
	assert.Equal(t, "-100123", telegram.GroupKey("", -100123))
	assert.Equal(t, "-100123", telegram.GroupKey("  ", -100123))
}

func TestBotIDFromToken(t *testing.T) {
	t.Parallel()

	id, err := telegram.BotIDFromToken("123456:ABC-DEF")
	assert.NoError(t, err)
	assert.Equal(t, int64(123456), id)

	for _, bad := range []string{"", "nocolon", "abc:def", "-5:x"} {
		_, err := telegram.BotIDFromToken(bad)
		assert.Error(t, err, bad)
	}
}

package gate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgard/gatekeeper/internal/gate"
)

func TestEvaluateGrid(t *testing.T) {
	t.Parallel()

	texts := []string{"", "hello", "احجز الآن", "BOOK now", "please book"}
	keywords := []string{"", "book", "احجز", "missing"}

	for _, subscribed := range []bool{false, true} {
		for _, hasHandle := range []bool{false, true} {
			for _, text := range texts {
				for _, keyword := range keywords {
					got := gate.Evaluate(subscribed, hasHandle, text, keyword)
					switch {
					case !subscribed:
						assert.Equal(t, gate.ReasonNotSubscribed, got.Reason, "text=%q keyword=%q", text, keyword)
					case hasHandle:
						assert.True(t, got.Pass(), "text=%q keyword=%q", text, keyword)
					}
				}
			}
		}
	}
}

func TestEvaluateNoPublicHandle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		keyword string
		want    gate.Reason
	}{
		{"arabic keyword present", "احجز الآن", "احجز", gate.ReasonNoPublicHandle},
		{"case insensitive", "Please BOOK a table", "book", gate.ReasonNoPublicHandle},
		{"keyword upper", "please book", "BOOK", gate.ReasonNoPublicHandle},
		{"keyword absent", "just chatting", "book", gate.ReasonNone},
		{"empty text", "", "book", gate.ReasonNone},
		{"empty keyword never matches", "anything", "", gate.ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := gate.Evaluate(true, false, tt.text, tt.keyword)
			assert.Equal(t, tt.want, got.Reason)
			assert.Equal(t, tt.want == gate.ReasonNone, got.Pass())
		})
	}
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbedValidate(t *testing.T) {
	card := &ExternalEmbed{URI: "https://example.com", Title: "t", Description: "d"}

	tests := []struct {
		name    string
		embed   *Embed
		wantErr bool
	}{
		{"nil embed is fine", nil, false},
		{"one image", &Embed{Images: []ImageEmbed{{Name: "a.png"}}}, false},
		{"four images", &Embed{Images: make([]ImageEmbed, 4)}, false},
		{"five images", &Embed{Images: make([]ImageEmbed, 5)}, true},
		{"link card", &Embed{External: card}, false},
		{"images and card together", &Embed{Images: []ImageEmbed{{Name: "a.png"}}, External: card}, true},
		{"empty embed", &Embed{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.embed.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLabelValid(t *testing.T) {
	for _, l := range []Label{"", LabelNudity, LabelSexual, LabelPorn, LabelGraphicMedia} {
		assert.True(t, l.Valid(), string(l))
	}
	assert.False(t, Label("spicy").Valid())
	assert.False(t, Label("NUDITY").Valid())
}

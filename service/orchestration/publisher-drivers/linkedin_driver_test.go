package publisherdrivers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestShareMediaTitleSlicesOnRunes(t *testing.T) {
	long := strings.Repeat("é", 30)
	title := shareMediaTitle(long)
	assert.Equal(t, strings.Repeat("é", 20), title)
	assert.True(t, utf8.ValidString(title))
}

func TestShareMediaTitleKeepsShortText(t *testing.T) {
	assert.Equal(t, "short caption", shareMediaTitle("short caption"))
}

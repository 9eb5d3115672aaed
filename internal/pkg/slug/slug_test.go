package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	cases := map[string]string{
		"Château Margaux 2015":     "chateau-margaux-2015",
		"  Jack Daniel's Old No.7 ": "jack-daniel-s-old-no-7",
		"Gin & Tonic":              "gin-and-tonic",
		"Añejo Tequila":            "anejo-tequila",
		"---":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Make(in), in)
	}
}

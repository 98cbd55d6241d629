//go:build go1.18

package config

import (
	"context"
	"testing"
)

func FuzzParser_ParseString(f *testing.F) {
	f.Add(`kinstall = { device = "amigo" }`)
	f.Add(`kinstall = { timeouts = { stall = 1.5 } }`)
	f.Add(`kinstall = { baudrate = 1500000, port = "/dev/ttyUSB0" }`)

	parser := NewParser(nil)

	f.Fuzz(func(t *testing.T, luaCode string) {
		_, _ = parser.ParseString(context.Background(), luaCode)
	})
}

func FuzzGenerator_QuoteLuaString(f *testing.F) {
	f.Add("/home/me/krux")
	f.Add(`say "hello"`)
	f.Add("line1\nline2")
	f.Add(`C:\\Users\\test`)

	gen := NewGenerator()

	f.Fuzz(func(t *testing.T, input string) {
		quoted := gen.quoteLuaString(input)
		if len(quoted) < 2 || quoted[0] != '"' || quoted[len(quoted)-1] != '"' {
			t.Errorf("quoteLuaString(%q) = %q, invalid format", input, quoted)
		}
	})
}

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestTerminalReporter_Progress(t *testing.T) {
	var out bytes.Buffer
	r := newTerminalReporter(&out, strings.NewReader(""), false)

	r.Progress("download-release", 0, 2048)
	r.Progress("download-release", 10, 2048) // same percentage, not redrawn
	r.Progress("download-release", 2048, 2048)
	r.Status("download-release", "/tmp/krux-v24.11.1.zip downloaded")

	want := "\rdownload-release:   0% (0 B / 2.0 KiB)" +
		"\rdownload-release: 100% (2.0 KiB / 2.0 KiB)" +
		"\n/tmp/krux-v24.11.1.zip downloaded\n"
	if out.String() != want {
		t.Errorf("output = %q\nwant     %q", out.String(), want)
	}
}

func TestTerminalReporter_UnknownSize(t *testing.T) {
	var out bytes.Buffer
	r := newTerminalReporter(&out, strings.NewReader(""), false)

	r.Progress("download-pubkey", 512, -1)
	r.Finished("done")

	if out.String() != "\rdownload-pubkey: 512 B\ndone\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestTerminalReporter_PlainProgress(t *testing.T) {
	var out bytes.Buffer
	r := newTerminalReporter(&out, strings.NewReader(""), false)
	r.plain = true

	r.Progress("download-release", 0, 1000)
	r.Progress("download-release", 50, 1000)  // still 0%
	r.Progress("download-release", 150, 1000) // 15% rounds down to 10%
	r.Progress("download-release", 199, 1000) // still 10%
	r.Progress("download-pubkey", 10, -1)     // unknown size is silent
	r.Status("download-release", "done")

	want := "download-release:   0% (0 B / 1000 B)\n" +
		"download-release:  10% (150 B / 1000 B)\n" +
		"done\n"
	if out.String() != want {
		t.Errorf("output = %q\nwant     %q", out.String(), want)
	}
}

func TestTerminalReporter_OutputAndFailure(t *testing.T) {
	var out bytes.Buffer
	r := newTerminalReporter(&out, strings.NewReader(""), false)

	r.Output("flash", "Programming BIN: |====| 100.0%")
	r.Failed(errors.New("boom"))

	if out.String() != "  Programming BIN: |====| 100.0%\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestTerminalReporter_Confirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		yes   bool
		want  bool
	}{
		{"yes", "y\n", false, true},
		{"full word", "YES\n", false, true},
		{"no", "n\n", false, false},
		{"empty line", "\n", false, false},
		{"eof", "", false, false},
		{"no trailing newline", "y", false, true},
		{"assume yes", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			r := newTerminalReporter(&out, strings.NewReader(tt.input), tt.yes)

			if got := r.Confirm("This will erase the device."); got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
			if !strings.HasPrefix(out.String(), "This will erase the device.\nContinue? [y/N] ") {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{20 * 1024 * 1024, "20 MiB"},
		{-1, "0 B"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

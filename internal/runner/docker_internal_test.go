package runner

import (
	"encoding/binary"
	"testing"
)

func makeDockerFrame(streamType byte, payload []byte) []byte {
	header := make([]byte, 8)
	header[0] = streamType
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	return append(header, payload...)
}

func TestDemuxOutput(t *testing.T) {
	tests := []struct {
		name       string
		input      []byte
		wantStdout string
		wantStderr string
	}{
		{"empty input", nil, "", ""},
		{"stdout frame", makeDockerFrame(1, []byte("hello")), "hello", ""},
		{"stderr frame", makeDockerFrame(2, []byte("warn")), "", "warn"},
		{
			"interleaved frames",
			append(append(makeDockerFrame(1, []byte("a\n")), makeDockerFrame(2, []byte("x\n"))...), makeDockerFrame(1, []byte("b\n"))...),
			"a\nb\n", "x\n",
		},
		{"raw stream without headers", []byte("short"), "short", ""},
		{"zero size frame", makeDockerFrame(1, nil), "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr := demuxOutput(tt.input)
			if stdout != tt.wantStdout {
				t.Errorf("stdout = %q; want %q", stdout, tt.wantStdout)
			}
			if stderr != tt.wantStderr {
				t.Errorf("stderr = %q; want %q", stderr, tt.wantStderr)
			}
		})
	}
}

func TestDefaultDockerConfig(t *testing.T) {
	cfg := DefaultDockerConfig()
	if cfg.Image != "node:20-alpine" {
		t.Errorf("Image = %q; want node:20-alpine", cfg.Image)
	}
	if !cfg.NetworkOff {
		t.Error("NetworkOff = false; want true")
	}
	if cfg.MemoryMB <= 0 || cfg.PidsLimit <= 0 {
		t.Errorf("limits not set: %+v", cfg)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("shortID() = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID() = %q", got)
	}
}

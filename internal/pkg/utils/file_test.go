package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSupportVideoExt(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{ext: ".mp4", want: true},
		{ext: ".webm", want: true},
		{ext: ".mov", want: true},
		{ext: ".mkv", want: true},
		{ext: ".mp3", want: false},
		{ext: ".zip", want: false},
		{ext: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := SupportVideoExt(tt.ext); got != tt.want {
				t.Errorf("SupportVideoExt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "olia.mp4")
	if err := WriteFile(name, []byte("olia")); err != nil {
		t.Errorf("WriteFile() error = %v", err)
	}
	b, err := os.ReadFile(name)
	if err != nil || string(b) != "olia" {
		t.Errorf("got %s, err %v", string(b), err)
	}
	if !FileExists(name) {
		t.Error("FileExists() = false")
	}
	if FileExists(name + ".none") {
		t.Error("FileExists() = true")
	}
}

func TestParamTrue(t *testing.T) {
	tests := []struct {
		prm  string
		want bool
	}{
		{prm: "true", want: true},
		{prm: "TRUE", want: true},
		{prm: "1", want: true},
		{prm: "false", want: false},
		{prm: "0", want: false},
		{prm: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.prm, func(t *testing.T) {
			if got := ParamTrue(tt.prm); got != tt.want {
				t.Errorf("ParamTrue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVideoMime(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{mime: "video/mp4", want: true},
		{mime: "video/webm", want: true},
		{mime: "VIDEO/MP4", want: true},
		{mime: " video/mp4 ", want: true},
		{mime: "audio/webm", want: false},
		{mime: "image/png", want: false},
		{mime: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := VideoMime(tt.mime); got != tt.want {
				t.Errorf("VideoMime() = %v, want %v", got, tt.want)
			}
		})
	}
}

package validation

import (
	"path/filepath"
	"testing"
)

func TestValidateEntityName(t *testing.T) {
	tests := []struct {
		name    string
		entity  string
		wantErr bool
	}{
		{"simple", "paddle", false},
		{"with underscore", "brick_12", false},
		{"with spaces", "red brick", false},
		{"empty", "", true},
		{"control char", "brick\n1", true},
		{"too long", string(make([]byte, 65)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntityName(tt.entity)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEntityName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateScheduleID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "sched_a1b2c3d4", false},
		{"empty", "", true},
		{"wrong prefix", "task_a1b2c3d4", true},
		{"too short", "sched_a1b2", true},
		{"path traversal attempt", "../../../etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScheduleID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateScheduleID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"simple path", "foo/bar", "foo/bar", false},
		{"single component", "filename.txt", "filename.txt", false},
		{"with underscore", "my_file.txt", "my_file.txt", false},
		{"with dash", "my-file.txt", "my-file.txt", false},
		{"trailing slash", "foo/bar/", "foo/bar/", false},
		{"empty", "", "", true},
		{"path traversal", "../../../etc/passwd", "", true},
		{"path traversal in middle", "foo/../../../etc/passwd", "", true},
		{"absolute path", "/etc/passwd", "", true},
		{"unsafe chars semicolon", "foo;rm -rf /", "", true},
		{"unsafe chars space", "foo bar", "", true},
		{"unsafe chars ampersand", "foo&bar", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizePath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SanitizePath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitizeExportPath(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		path    string
		want    string
		wantErr bool
	}{
		{"anchored under root", "/data/exports", "game.json", filepath.Join("/data/exports", "game.json"), false},
		{"nested", "/data/exports", "saves/game.json", filepath.Join("/data/exports", "saves/game.json"), false},
		{"no root", "", "game.json", "game.json", false},
		{"traversal rejected", "/data/exports", "../secrets.json", "", true},
		{"absolute rejected", "/data/exports", "/etc/passwd", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeExportPath(tt.root, tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizeExportPath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SanitizeExportPath() = %v, want %v", got, tt.want)
			}
		})
	}
}

package mariadb

import (
	"testing"
	"time"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{"empty", "", true},
		{"valid", "audit:secret@tcp(localhost:3306)/biogate", false},
		{"with params", "audit:secret@tcp(db:3306)/biogate?charset=utf8mb4", false},
		{"malformed", "audit:secret@tcp(localhost:3306", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseDSN(tt.dsn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDSN(%q) error = %v, wantErr %v", tt.dsn, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !cfg.ParseTime {
				t.Error("ParseTime must be forced on")
			}
			if cfg.DBName != "biogate" {
				t.Errorf("DBName = %s, want biogate", cfg.DBName)
			}
		})
	}
}

func TestParseDSN_KeepsLocation(t *testing.T) {
	cfg, err := parseDSN("u:p@tcp(h:3306)/db?loc=Local")
	if err != nil {
		t.Fatalf("parseDSN error: %v", err)
	}
	if cfg.Loc != time.Local {
		t.Errorf("Loc = %v, want Local", cfg.Loc)
	}
}

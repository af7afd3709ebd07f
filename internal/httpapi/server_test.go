package httpapi

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParsePositiveInt(t *testing.T) {
	t.Parallel()

	if got := parsePositiveInt("", 25); got != 25 {
		t.Fatalf("empty input should fall back, got %d", got)
	}
	if got := parsePositiveInt(" 3 ", 25); got != 3 {
		t.Fatalf("padded input should parse, got %d", got)
	}
	if got := parsePositiveInt("0", 25); got != 25 {
		t.Fatalf("non-positive input should fall back, got %d", got)
	}
	if got := parsePositiveInt("-4", 25); got != 25 {
		t.Fatalf("negative input should fall back, got %d", got)
	}
	if got := parsePositiveInt("abc", 25); got != 25 {
		t.Fatalf("garbage input should fall back, got %d", got)
	}
}

func TestNewServerDefaults(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, zerolog.Nop(), Options{})

	if server.opts.Host != "0.0.0.0" {
		t.Fatalf("default host wrong: %q", server.opts.Host)
	}
	if server.opts.Port != 8091 {
		t.Fatalf("default port wrong: %d", server.opts.Port)
	}
	if server.opts.ReadTimeout <= 0 || server.opts.WriteTimeout <= 0 || server.opts.ShutdownTimeout <= 0 {
		t.Fatalf("default timeouts not applied: %+v", server.opts)
	}
	if len(server.opts.AllowedOrigins) != 1 || server.opts.AllowedOrigins[0] != "*" {
		t.Fatalf("default origins wrong: %v", server.opts.AllowedOrigins)
	}
}

func TestNewServerKeepsExplicitOptions(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, zerolog.Nop(), Options{
		Host:           " 127.0.0.1 ",
		Port:           9000,
		AllowedOrigins: []string{"https://example.com"},
	})

	if server.opts.Host != "127.0.0.1" {
		t.Fatalf("host not trimmed: %q", server.opts.Host)
	}
	if server.opts.Port != 9000 {
		t.Fatalf("port overridden: %d", server.opts.Port)
	}
	if len(server.opts.AllowedOrigins) != 1 || server.opts.AllowedOrigins[0] != "https://example.com" {
		t.Fatalf("origins overridden: %v", server.opts.AllowedOrigins)
	}
}

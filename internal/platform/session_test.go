package platform

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kkdl-dev/kkdl/internal/domain"
)

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr bool
	}{
		{"neither", Credentials{}, true},
		{"both", Credentials{CookieFile: "c.txt", Token: "t"}, true},
		{"token", Credentials{Token: "t"}, false},
		{"cookie", Credentials{CookieFile: "c.txt"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrUsage) {
				t.Errorf("Expected ErrUsage, got %v", err)
			}
		})
	}
}

func TestParseCookieFile(t *testing.T) {
	input := strings.Join([]string{
		"# Netscape HTTP Cookie File",
		"",
		".kodekloud.com\tTRUE\t/\tTRUE\t1893456000\tsession-cookie\tabc",
		"#HttpOnly_learn.kodekloud.com\tFALSE\t/api\tFALSE\t0\tcsrf\txyz",
	}, "\n")

	cookies, err := ParseCookieFile(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("Expected 2 cookies, got %d", len(cookies))
	}

	first := cookies[0]
	if first.Host != "kodekloud.com" || first.Domain != "kodekloud.com" || !first.Secure {
		t.Errorf("Unexpected first cookie: %+v", first.Cookie)
	}
	if !first.Expires.Equal(time.Unix(1893456000, 0)) {
		t.Errorf("Unexpected expiry %v", first.Expires)
	}

	second := cookies[1]
	if !second.HttpOnly || second.Domain != "" || second.Path != "/api" || !second.Expires.IsZero() {
		t.Errorf("Unexpected second cookie: %+v", second.Cookie)
	}
}

func TestParseCookieFileRejectsMalformed(t *testing.T) {
	_, err := ParseCookieFile(strings.NewReader("kodekloud.com TRUE / TRUE 0 a b\n"))
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("Expected line-numbered error, got %v", err)
	}
}

func TestLoadCookieJarMissingFile(t *testing.T) {
	_, err := LoadCookieJar("/nonexistent/cookies.txt")
	if !errors.Is(err, domain.ErrUsage) {
		t.Errorf("Expected ErrUsage, got %v", err)
	}
}

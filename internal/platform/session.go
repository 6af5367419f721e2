package platform

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	cookiemonster "github.com/MercuryEngineering/CookieMonster"

	"github.com/kkdl-dev/kkdl/internal/domain"
)

// Credentials is the user supplied authentication material. Exactly one field must be set.
type Credentials struct {
	CookieFile string
	Token      string
}

func (c Credentials) Validate() error {
	switch {
	case c.CookieFile == "" && c.Token == "":
		return domain.Usagef("you must provide either --token or --cookie for authentication")
	case c.CookieFile != "" && c.Token != "":
		return domain.Usagef("--token and --cookie are mutually exclusive")
	}
	return nil
}

// Session authorizes every request against the platform. It is immutable once built.
type Session struct {
	token     string
	jar       http.CookieJar
	userAgent string
	referer   string
}

// NewSession validates creds and loads the cookie file if one was given.
func NewSession(creds Credentials, userAgent, referer string) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	s := &Session{token: creds.Token, userAgent: userAgent, referer: referer}

	if creds.CookieFile != "" {
		jar, err := LoadCookieJar(creds.CookieFile)
		if err != nil {
			return nil, err
		}
		s.jar = jar
	}

	return s, nil
}

// AnonymousSession carries no credentials. Used for the public quiz endpoints.
func AnonymousSession(userAgent, referer string) *Session {
	return &Session{userAgent: userAgent, referer: referer}
}

// HTTPClient returns a client bound to the session's cookie jar.
func (s *Session) HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Jar: s.jar, Timeout: timeout}
}

// identify sets the headers sent to every host.
func (s *Session) identify(req *http.Request) {
	req.Header.Set("User-Agent", s.userAgent)
	if s.referer != "" {
		req.Header.Set("Referer", s.referer)
	}
}

// authorize additionally attaches the bearer token. Only platform hosts may see it.
func (s *Session) authorize(req *http.Request) {
	s.identify(req)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}

// LoadCookieJar reads a Netscape cookies.txt file into a jar.
func LoadCookieJar(path string) (http.CookieJar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening cookie file: %v", domain.ErrUsage, err)
	}
	defer f.Close()

	cookies, err := ParseCookieFile(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUsage, path, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	for _, nc := range cookies {
		scheme := "http"
		if nc.Secure {
			scheme = "https"
		}
		jar.SetCookies(&url.URL{Scheme: scheme, Host: nc.Host, Path: "/"}, []*http.Cookie{nc.Cookie})
	}

	return jar, nil
}

// NetscapeCookie is one line of a cookies.txt file together with the host it belongs to.
type NetscapeCookie struct {
	*http.Cookie
	Host string
}

// ParseCookieFile parses the tab separated Netscape format written by browser extensions and curl.
// Lines are checked here so that errors carry a line number; decoding is left to cookiemonster.
func ParseCookieFile(r io.Reader) ([]NetscapeCookie, error) {
	type lineFlags struct {
		httpOnly bool
		hostOnly bool
	}

	var clean strings.Builder
	flags := make(map[string]lineFlags)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")

		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
			httpOnly = true
		}

		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, fmt.Errorf("line %d: expected 7 tab separated fields, got %d", lineNo, len(fields))
		}

		host := strings.TrimPrefix(fields[0], ".")
		if host == "" || fields[5] == "" {
			return nil, fmt.Errorf("line %d: empty domain or cookie name", lineNo)
		}
		if _, err := strconv.ParseInt(fields[4], 10, 64); err != nil {
			return nil, fmt.Errorf("line %d: bad expiry %q", lineNo, fields[4])
		}

		flags[cookieKey(host, fields[2], fields[5])] = lineFlags{
			httpOnly: httpOnly,
			hostOnly: !strings.EqualFold(fields[1], "TRUE"),
		}
		clean.WriteString(line)
		clean.WriteString("\n")
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	cookies, err := cookiemonster.ParseString(clean.String())
	if err != nil {
		return nil, err
	}

	out := make([]NetscapeCookie, 0, len(cookies))
	for _, c := range cookies {
		host := strings.TrimPrefix(c.Domain, ".")
		f := flags[cookieKey(host, c.Path, c.Name)]

		c.HttpOnly = f.httpOnly
		// Host-only cookies keep an empty Domain attribute.
		c.Domain = host
		if f.hostOnly {
			c.Domain = ""
		}
		// Expiry 0 marks a session cookie; a jar would drop it as expired.
		if c.Expires.Unix() <= 0 {
			c.Expires = time.Time{}
		}

		out = append(out, NetscapeCookie{Cookie: c, Host: host})
	}

	return out, nil
}

func cookieKey(host, path, name string) string {
	return host + "\x00" + path + "\x00" + name
}

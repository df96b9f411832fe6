// Package browser observes the LinkedIn session in a running Chrome: the
// auth cookie, open tab URLs and page content.
package browser

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
)

const (
	AuthCookieName   = "li_at"
	AuthCookieDomain = ".www.linkedin.com"
)

// RecruiterPathPatterns mark a tab as using the shared Recruiter seat.
var RecruiterPathPatterns = []string{"/talent/"}

var conflictPathMarkers = []string{"enterprise-authentication/sessions", "checkpoint"}

var conflictTextPattern = regexp.MustCompile(`(?i)multiple sign-ins|only one session is allowed|sign out this session`)

// ErrUnavailable is returned by None and by a disconnected adapter.
var ErrUnavailable = errors.New("browser: not connected")

// Tab is an open page.
type Tab struct {
	ID  string
	URL string
}

// Browser is the narrow view of the browser the reconciler needs.
type Browser interface {
	AuthCookiePresent(ctx context.Context) (bool, error)
	// Tabs lists open LinkedIn pages.
	Tabs(ctx context.Context) ([]Tab, error)
	Probe(ctx context.Context, tabID string) (*PageProbe, error)
}

// None is a Browser with nothing attached; every call fails with
// ErrUnavailable.
type None struct{}

func (None) AuthCookiePresent(context.Context) (bool, error)     { return false, ErrUnavailable }
func (None) Tabs(context.Context) ([]Tab, error)                 { return nil, ErrUnavailable }
func (None) Probe(context.Context, string) (*PageProbe, error) { return nil, ErrUnavailable }

// IsLinkedInURL reports whether raw points at linkedin.com or a subdomain.
func IsLinkedInURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com")
}

// IsRecruiterURL reports whether raw is a LinkedIn page under a recruiter
// path.
func IsRecruiterURL(raw string) bool {
	if !IsLinkedInURL(raw) {
		return false
	}
	u, _ := url.Parse(raw)
	for _, p := range RecruiterPathPatterns {
		if strings.Contains(u.Path, p) {
			return true
		}
	}
	return false
}

// IsSessionConflictURL reports whether raw is LinkedIn's "signed in
// elsewhere" interstitial.
func IsSessionConflictURL(raw string) bool {
	if !IsLinkedInURL(raw) {
		return false
	}
	u, _ := url.Parse(raw)
	for _, m := range conflictPathMarkers {
		if strings.Contains(u.Path, m) {
			return true
		}
	}
	return false
}

// IsSessionConflictText reports whether page text shows the one-session
// warning.
func IsSessionConflictText(text string) bool {
	return conflictTextPattern.MatchString(text)
}

// AnyRecruiterTab reports whether any tab is on a recruiter path.
func AnyRecruiterTab(tabs []Tab) bool {
	for _, t := range tabs {
		if IsRecruiterURL(t.URL) {
			return true
		}
	}
	return false
}

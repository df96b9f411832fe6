package browser

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

var ignoredEmailDomains = []string{"linkedin.com", "example.com", "test.com"}

// PageProbe is what a tab exposes about the signed-in LinkedIn account.
type PageProbe struct {
	URL              string            `json:"url"`
	LDJSON           []string          `json:"ldJson"`
	MetaEmail        string            `json:"metaEmail"`
	Text             string            `json:"text"`
	NavSettingsEmail string            `json:"navSettingsEmail"`
	NavSettingsLabel string            `json:"navSettingsLabel"`
	Storage          map[string]string `json:"storage"`
}

// probeScript collects PageProbe fields in the page. Page text is truncated
// to keep the CDP response small.
const probeScript = `(() => {
  const out = {url: location.href, ldJson: [], metaEmail: "", text: "", navSettingsEmail: "", navSettingsLabel: "", storage: {}};
  for (const s of document.querySelectorAll('script[type="application/ld+json"]')) out.ldJson.push(s.textContent || "");
  const meta = document.querySelector('meta[property="og:email"]');
  if (meta) out.metaEmail = meta.getAttribute("content") || "";
  out.text = (document.body && document.body.innerText || "").slice(0, 200000);
  const nav = document.querySelector('[data-control-name="nav.settings"]');
  if (nav) { out.navSettingsEmail = nav.getAttribute("data-email") || ""; out.navSettingsLabel = nav.getAttribute("aria-label") || ""; }
  try {
    for (let i = 0; i < localStorage.length; i++) {
      const k = localStorage.key(i);
      if (/email|user/i.test(k)) out.storage[k] = localStorage.getItem(k) || "";
    }
  } catch (e) {}
  return out;
})()`

// AccountEmail guesses the signed-in account's email. Sources in order:
// ld+json "email", og:email meta, the first email-shaped string in the page
// text outside ignored domains, the settings nav attribute on profile pages
// (returned whole when it contains "@"), and localStorage entries. Empty when nothing matches.
func (p *PageProbe) AccountEmail() string {
	if p == nil {
		return ""
	}
	for _, block := range p.LDJSON {
		var doc struct {
			Email string `json:"email"`
		}
		if json.Unmarshal([]byte(block), &doc) == nil && doc.Email != "" {
			return doc.Email
		}
	}
	if p.MetaEmail != "" {
		return p.MetaEmail
	}
	for _, m := range emailPattern.FindAllString(p.Text, -1) {
		if !ignoredEmail(m) {
			return m
		}
	}
	if p.onProfilePage() {
		attr := p.NavSettingsEmail
		if attr == "" {
			attr = p.NavSettingsLabel
		}
		if strings.Contains(attr, "@") {
			return attr
		}
	}
	return storageEmail(p.Storage)
}

func (p *PageProbe) onProfilePage() bool {
	u, err := url.Parse(p.URL)
	return err == nil && strings.Contains(u.Path, "/in/")
}

func ignoredEmail(email string) bool {
	lower := strings.ToLower(email)
	for _, d := range ignoredEmailDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

func storageEmail(storage map[string]string) string {
	keys := make([]string, 0, len(storage))
	for k := range storage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := storage[k]
		if !strings.Contains(v, "@") || strings.Contains(v, "linkedin.com") {
			continue
		}
		// The pattern is only tried on values that are not JSON.
		if json.Valid([]byte(v)) {
			var doc struct {
				Email string `json:"email"`
			}
			if json.Unmarshal([]byte(v), &doc) == nil && doc.Email != "" {
				return doc.Email
			}
			continue
		}
		if emailPattern.MatchString(v) {
			return v
		}
	}
	return ""
}

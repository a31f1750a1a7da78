package core

import (
	"regexp"
	"strings"

	"github.com/pmorales/segmint/schema"
)

// ExtractRule is one pattern-based extraction rule: a regex applied to a
// surface (title, URL, or path), with an optional capture group, token cap,
// and transform. Rules are data, not code, so new application categories
// are additive.
type ExtractRule struct {
	Name      string
	Pattern   *regexp.Regexp
	Group     int // capture group to take; 0 takes the whole match
	MaxTokens int
	Transform func(string) string
}

// Apply runs the rule over the input and returns up to MaxTokens tokens.
func (r *ExtractRule) Apply(input string) []string {
	if input == "" {
		return nil
	}
	limit := r.MaxTokens
	if limit <= 0 {
		limit = 3
	}
	matches := r.Pattern.FindAllStringSubmatch(input, limit)
	var out []string
	for _, m := range matches {
		tok := m[0]
		if r.Group > 0 && r.Group < len(m) {
			tok = m[r.Group]
		}
		if r.Transform != nil {
			tok = r.Transform(tok)
		}
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Shared identifier patterns applied regardless of application category.
var commonRules = []ExtractRule{
	{
		Name:      "ticket-id",
		Pattern:   regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,9}-\d{1,6}\b`),
		MaxTokens: 5,
	},
	{
		Name:      "wbs-code",
		Pattern:   regexp.MustCompile(`\b\d{4,8}(?:\.\d{1,4}){1,3}\b`),
		MaxTokens: 5,
	},
}

// Per-category rules keyed by application category. Extraction applies the
// common rules first, then the category's own.
var categoryRules = map[schema.AppCategory][]ExtractRule{
	schema.IDEApp: {
		{
			// "main.go - acme-merger - Visual Studio Code"
			Name:      "workspace-name",
			Pattern:   regexp.MustCompile(`[-\x{2014}] ([\w][\w .-]{2,40}) [-\x{2014}]`),
			Group:     1,
			MaxTokens: 1,
		},
	},
	schema.TerminalApp: {
		{
			// "user@host: ~/work/acme-merger"
			Name:      "cwd-folder",
			Pattern:   regexp.MustCompile(`[~/]([\w.-]{3,40})\s*$`),
			Group:     1,
			MaxTokens: 1,
		},
	},
	schema.EmailApp: {
		{
			Name:      "subject",
			Pattern:   regexp.MustCompile(`(?i)^(?:re:|fwd?:)?\s*(.{4,80})`),
			Group:     1,
			MaxTokens: 1,
			Transform: strings.TrimSpace,
		},
	},
	schema.ChatApp: {
		{
			Name:      "channel",
			Pattern:   regexp.MustCompile(`#([a-z0-9][a-z0-9_-]{2,40})`),
			Group:     1,
			MaxTokens: 3,
		},
	},
	schema.SpreadsheetApp: {
		{
			// "Model_v12 - AcmeDiligence.xlsx"
			Name:      "workbook",
			Pattern:   regexp.MustCompile(`([\w][\w .&-]{2,60})\.(?:xlsx?|xlsm|csv)`),
			Group:     1,
			MaxTokens: 1,
		},
	},
	schema.DocumentApp: {
		{
			Name:      "document",
			Pattern:   regexp.MustCompile(`([\w][\w .&-]{2,60})\.(?:docx?|pptx?|pdf)`),
			Group:     1,
			MaxTokens: 1,
		},
	},
}

// appCategoryHints maps lowercase application-name fragments to categories.
// First hit wins, so more specific names come first.
var appCategoryHints = []struct {
	fragment string
	category schema.AppCategory
}{
	{"excel", schema.SpreadsheetApp},
	{"numbers", schema.SpreadsheetApp},
	{"sheets", schema.SpreadsheetApp},
	{"word", schema.DocumentApp},
	{"pages", schema.DocumentApp},
	{"powerpoint", schema.DocumentApp},
	{"acrobat", schema.DocumentApp},
	{"preview", schema.DocumentApp},
	{"outlook", schema.EmailApp},
	{"mail", schema.EmailApp},
	{"thunderbird", schema.EmailApp},
	{"zoom", schema.MeetingApp},
	{"teams", schema.MeetingApp},
	{"webex", schema.MeetingApp},
	{"meet", schema.MeetingApp},
	{"slack", schema.ChatApp},
	{"discord", schema.ChatApp},
	{"terminal", schema.TerminalApp},
	{"iterm", schema.TerminalApp},
	{"warp", schema.TerminalApp},
	{"code", schema.IDEApp},
	{"intellij", schema.IDEApp},
	{"goland", schema.IDEApp},
	{"pycharm", schema.IDEApp},
	{"xcode", schema.IDEApp},
	{"vim", schema.IDEApp},
	{"figma", schema.DesignApp},
	{"sketch", schema.DesignApp},
	{"chrome", schema.BrowserApp},
	{"safari", schema.BrowserApp},
	{"firefox", schema.BrowserApp},
	{"edge", schema.BrowserApp},
	{"arc", schema.BrowserApp},
	{"brave", schema.BrowserApp},
}

// vdrDomains are virtual data room providers; activity there is a strong
// deal-work signal.
var vdrDomains = map[string]struct{}{
	"datasite.com":    {},
	"intralinks.com":  {},
	"idealsvdr.com":   {},
	"firmex.com":      {},
	"ansarada.com":    {},
	"sterlingvdr.com": {},
}

// meetingDomains maps meeting-platform domains to display names.
var meetingDomains = map[string]string{
	"zoom.us":         "Zoom",
	"teams.live.com":  "Teams",
	"webex.com":       "Webex",
	"meet.google.com": "Google Meet",
}

// personalDomains are recognized non-work destinations.
var personalDomains = map[string]struct{}{
	"youtube.com":   {},
	"netflix.com":   {},
	"twitter.com":   {},
	"x.com":         {},
	"instagram.com": {},
	"facebook.com":  {},
	"reddit.com":    {},
	"tiktok.com":    {},
	"espn.com":      {},
	"amazon.com":    {},
}

// stopwords excluded from keyword extraction.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "this": {},
	"that": {}, "have": {}, "your": {}, "new": {}, "tab": {}, "untitled": {},
	"window": {}, "file": {}, "edit": {}, "view": {}, "help": {},
	"microsoft": {}, "google": {}, "inbox": {}, "home": {}, "page": {},
}

// CategorizeApp buckets an application name. VDR detection happens at the
// domain level, not here.
func CategorizeApp(app string) schema.AppCategory {
	lower := strings.ToLower(app)
	for _, hint := range appCategoryHints {
		if strings.Contains(lower, hint.fragment) {
			return hint.category
		}
	}
	return schema.UnknownApp
}

// RulesFor returns the extraction rules for a category: the common rules
// followed by category-specific ones.
func RulesFor(category schema.AppCategory) []ExtractRule {
	rules := make([]ExtractRule, 0, len(commonRules)+4)
	rules = append(rules, commonRules...)
	rules = append(rules, categoryRules[category]...)
	return rules
}

// IsVDRDomain reports whether the domain belongs to a known VDR provider.
func IsVDRDomain(domain string) bool {
	_, ok := vdrDomains[domain]
	return ok
}

// MeetingPlatform returns the display name of a meeting platform for the
// given domain, or "".
func MeetingPlatform(domain string) string {
	for suffix, name := range meetingDomains {
		if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
			return name
		}
	}
	return ""
}

// IsPersonalDomain reports whether the domain is a recognized non-work
// destination.
func IsPersonalDomain(domain string) bool {
	_, ok := personalDomains[domain]
	return ok
}

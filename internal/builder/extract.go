package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/weftlab/weft/internal/catalog"
	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/types"
)

// Use-case derivation bounds. Every entity gets at least minUseCases
// strings (padded from generic templates when the keyword rules match
// too little) and at most maxUseCases.
const (
	minUseCases = 2
	maxUseCases = 6
)

// categoryRule maps trigger keywords onto a category. Rules are checked
// in order; the first match wins, so more specific keywords come first.
type categoryRule struct {
	keywords []string
	category graph.Category
}

var categoryRules = []categoryRule{
	{[]string{"slack", "discord", "telegram", "sms", "chat", "email", "notify", "notification", "message"}, graph.CategoryMessaging},
	{[]string{"webhook", "http", "rest", "api call", "graphql", "request"}, graph.CategoryHTTP},
	{[]string{"postgres", "mysql", "sqlite", "database", "sql", "mongodb", "redis"}, graph.CategoryStorage},
	{[]string{"s3", "dropbox", "drive", "file", "upload", "download", "ftp"}, graph.CategoryFiles},
	{[]string{"cron", "schedule", "interval", "timer", "delay"}, graph.CategoryScheduling},
	{[]string{"openai", "llm", "gpt", "claude", "model", "classify", "sentiment", "embedding"}, graph.CategoryAI},
	{[]string{"hubspot", "salesforce", "pipedrive", "crm", "lead", "contact"}, graph.CategoryCRM},
	{[]string{"analytics", "metric", "dashboard", "report", "chart", "track"}, graph.CategoryAnalytics},
	{[]string{"github", "gitlab", "jira", "ci", "deploy", "pipeline", "issue"}, graph.CategoryDevTools},
	{[]string{"transform", "filter", "merge", "split", "parse", "format", "convert", "json", "csv", "xml", "spreadsheet"}, graph.CategoryData},
}

// useCaseRule derives a use-case string when any of its keywords appear
// in the record text. The template takes the record label.
type useCaseRule struct {
	keywords []string
	template string
}

var useCaseRules = []useCaseRule{
	{[]string{"notify", "notification", "alert", "message", "chat", "email", "sms"}, "send notifications through %s"},
	{[]string{"webhook", "trigger", "listen", "incoming", "event"}, "start a flow when %s fires"},
	{[]string{"sync", "update", "upsert", "import", "export"}, "keep records in sync with %s"},
	{[]string{"database", "sql", "query", "insert", "store", "persist"}, "store and query records with %s"},
	{[]string{"file", "upload", "download", "attachment", "document"}, "move files through %s"},
	{[]string{"schedule", "cron", "interval", "recurring", "daily"}, "run flows on a schedule with %s"},
	{[]string{"transform", "filter", "map", "convert", "parse", "format"}, "reshape data with %s"},
	{[]string{"classify", "summarize", "sentiment", "extract", "llm", "gpt"}, "enrich content with %s"},
	{[]string{"lead", "contact", "deal", "crm", "customer"}, "manage customer records with %s"},
	{[]string{"report", "dashboard", "metric", "track", "analytics"}, "feed reporting with %s"},
}

// prereqRule and pitfallRule derive prerequisite and pitfall strings
// the same way. These are opaque authored strings: they are attached to
// the entity for display and explanation text, never parsed again.
type textRule struct {
	keywords []string
	text     string
}

var prereqRules = []textRule{
	{[]string{"api key", "api_key", "token", "oauth", "credential", "auth"}, "credentials for the upstream service must be configured"},
	{[]string{"webhook"}, "a publicly reachable webhook URL is required"},
	{[]string{"database", "sql", "postgres", "mysql"}, "a reachable database with the target schema is required"},
	{[]string{"rate limit", "quota"}, "the upstream account needs sufficient quota"},
	{[]string{"admin", "permission", "scope"}, "the connected account needs adequate permission scopes"},
}

var pitfallRules = []textRule{
	{[]string{"rate limit", "throttl", "quota"}, "upstream rate limits can delay or drop calls under load"},
	{[]string{"pagination", "page", "cursor"}, "large result sets require cursor handling; partial pages are easy to miss"},
	{[]string{"timezone", "cron", "schedule"}, "schedule times are interpreted in the configured timezone, not the viewer's"},
	{[]string{"duplicate", "retry", "idempoten"}, "retries can create duplicates unless the operation is idempotent"},
	{[]string{"webhook"}, "webhook deliveries are at-least-once; consumers must tolerate replays"},
	{[]string{"attachment", "file", "upload"}, "file size limits differ per plan and fail silently on some services"},
}

// extractEntity turns one validated catalog record into a graph entity:
// category by rule or lookup, derived use-case/prerequisite/pitfall
// strings, keyword projection for lexical search, and carried-forward
// usage metadata. Success rate and usage count stay absent when the
// catalog does not provide them; unknown is distinguishable from zero
// and only the external feedback component fills them in later.
func extractEntity(rec *catalog.Record) (*graph.Entity, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	ent := graph.NewEntity(rec.ID, rec.Label).
		WithDescription(rec.Description).
		WithCategory(resolveCategory(rec))

	for k, v := range rec.Metadata {
		ent.Metadata[k] = v
	}

	text := strings.ToLower(rec.Label + " " + rec.Description)

	ent.Metadata[types.MetaKeyUseCases] = types.MetaStringList(deriveUseCases(rec.Label, text, rec.Metadata))
	if prereqs := matchTextRules(prereqRules, text); len(prereqs) > 0 {
		ent.Metadata[types.MetaKeyPrerequisites] = types.MetaStringList(prereqs)
	}
	if pitfalls := matchTextRules(pitfallRules, text); len(pitfalls) > 0 {
		ent.Metadata[types.MetaKeyPitfalls] = types.MetaStringList(pitfalls)
	}
	ent.Metadata[types.MetaKeyKeywords] = types.MetaStringList(deriveKeywords(rec, ent.Category))
	if rec.Kind != "" {
		ent.Metadata[types.MetaKeyKind] = types.MetaString(rec.Kind)
	}

	if err := ent.Validate(); err != nil {
		return nil, err
	}
	return ent, nil
}

// resolveCategory prefers a valid category declared on the record, then
// the first keyword rule matching label+description, then general.
func resolveCategory(rec *catalog.Record) graph.Category {
	if rec.Category != "" {
		if c := graph.Category(strings.ToLower(strings.TrimSpace(rec.Category))); c.IsValid() {
			return c
		}
	}
	text := strings.ToLower(rec.Label + " " + rec.Description)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return graph.CategoryGeneral
}

// deriveUseCases collects rule-matched use cases, keeps any authored in
// the catalog metadata first, and pads with generic templates up to the
// minimum. The result always holds between minUseCases and maxUseCases
// entries.
func deriveUseCases(label, text string, meta types.Metadata) []string {
	var cases []string
	if authored, ok := meta.GetStrings(types.MetaKeyUseCases); ok {
		cases = append(cases, authored...)
	}
	for _, rule := range useCaseRules {
		if len(cases) >= maxUseCases {
			break
		}
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				cases = appendUnique(cases, fmt.Sprintf(rule.template, label))
				break
			}
		}
	}
	generic := []string{
		fmt.Sprintf("connect %s into an automation flow", label),
		fmt.Sprintf("combine %s with other building blocks", label),
	}
	for _, g := range generic {
		if len(cases) >= minUseCases {
			break
		}
		cases = appendUnique(cases, g)
	}
	if len(cases) > maxUseCases {
		cases = cases[:maxUseCases]
	}
	return cases
}

// deriveKeywords projects the searchable terms: label words, category,
// kind, and any authored keywords, deduplicated and sorted for a
// stable rebuild.
func deriveKeywords(rec *catalog.Record, cat graph.Category) []string {
	seen := map[string]bool{}
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if len(term) >= 2 {
			seen[term] = true
		}
	}

	for _, w := range strings.FieldsFunc(rec.Label, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	}) {
		add(w)
	}
	add(cat.String())
	if rec.Kind != "" {
		add(rec.Kind)
	}
	if authored, ok := rec.Metadata.GetStrings(types.MetaKeyKeywords); ok {
		for _, k := range authored {
			add(k)
		}
	}

	keywords := make([]string, 0, len(seen))
	for k := range seen {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)
	return keywords
}

func matchTextRules(rules []textRule, text string) []string {
	var out []string
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				out = appendUnique(out, rule.text)
				break
			}
		}
	}
	return out
}

func appendUnique(dst []string, s string) []string {
	for _, have := range dst {
		if have == s {
			return dst
		}
	}
	return append(dst, s)
}

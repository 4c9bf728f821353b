// Package classify derives urgency, complexity, domain and query type from
// the raw query text. Classification is a pure function of the query: no
// I/O, deterministic, idempotent.
package classify

import (
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/pkg/config"
)

const (
	baseComplexity = 5
	minComplexity  = 1
	maxComplexity  = 10
)

var defaultUrgencyKeywords = []string{
	"urgent", "asap", "emergency", "immediately", "right now",
	"production down", "outage", "critical",
}

var defaultTechnicalKeywords = []string{
	"error", "exception", "stack trace", "timeout", "config",
	"api", "crash", "deploy", "permission", "certificate",
}

var defaultDomains = map[string][]string{
	"cloud":      {"aws", "azure", "gcp", "lambda", "s3", "ec2", "kubernetes", "docker", "serverless"},
	"database":   {"sql", "database", "postgres", "mysql", "redis", "mongo", "index", "schema"},
	"networking": {"dns", "http", "https", "tcp", "firewall", "proxy", "load balancer", "vpn"},
	"security":   {"auth", "oauth", "token", "encryption", "certificate", "vulnerability", "cve"},
}

var defaultTypes = map[string][]string{
	string(models.QueryTypeProcedural):     {"how to", "how do i", "how can i", "steps", "guide", "setup", "install", "configure", "create a"},
	string(models.QueryTypeDiagnostic):     {"error", "fail", "failing", "broken", "not working", "why is", "why does", "troubleshoot", "fix", "crash", "issue"},
	string(models.QueryTypeComparative):    {" vs ", "versus", "compare", "difference between", "better than", "pros and cons"},
	string(models.QueryTypeRecommendation): {"should i", "recommend", "best way", "best practice", "which one", "suggest"},
	string(models.QueryTypeFactual):        {"what is", "what are", "who is", "when was", "when did", "where is", "how many", "how much"},
}

type Classifier struct {
	urgencyKeywords   []string
	technicalKeywords []string
	domains           map[string][]string
	types             map[string][]string
	typeOrder         []models.QueryType
}

// New builds a classifier from the built-in keyword tables merged with any
// configured extensions. Config entries extend, never replace, so the
// defaults stay a floor.
func New(cfg config.ClassifierConfig) *Classifier {
	c := &Classifier{
		urgencyKeywords:   append([]string{}, defaultUrgencyKeywords...),
		technicalKeywords: append([]string{}, defaultTechnicalKeywords...),
		domains:           map[string][]string{},
		types:             map[string][]string{},
		// Order matters: diagnostic phrasing often embeds factual phrasing
		// ("what is this error"), so the more specific types match first.
		typeOrder: []models.QueryType{
			models.QueryTypeDiagnostic,
			models.QueryTypeProcedural,
			models.QueryTypeComparative,
			models.QueryTypeRecommendation,
			models.QueryTypeFactual,
		},
	}

	c.urgencyKeywords = append(c.urgencyKeywords, cfg.UrgencyKeywords...)
	c.technicalKeywords = append(c.technicalKeywords, cfg.TechnicalKeywords...)

	for domain, keywords := range defaultDomains {
		c.domains[domain] = append([]string{}, keywords...)
	}
	for domain, keywords := range cfg.Domains {
		c.domains[domain] = append(c.domains[domain], keywords...)
	}

	for queryType, keywords := range defaultTypes {
		c.types[queryType] = append([]string{}, keywords...)
	}
	for queryType, keywords := range cfg.Types {
		c.types[queryType] = append(c.types[queryType], keywords...)
	}

	return c
}

func (c *Classifier) Classify(q models.Query) models.Classification {
	text := strings.ToLower(q.Text)

	return models.Classification{
		Urgency:    c.urgency(q, text),
		Complexity: c.complexity(q.Text, text),
		Domain:     c.domain(q, text),
		Type:       c.queryType(text),
	}
}

func (c *Classifier) urgency(q models.Query, text string) models.Urgency {
	if q.Urgency == models.UrgencyCritical {
		return models.UrgencyCritical
	}
	for _, keyword := range c.urgencyKeywords {
		if strings.Contains(text, keyword) {
			return models.UrgencyCritical
		}
	}
	if q.Urgency != "" {
		return q.Urgency
	}
	return models.UrgencyNormal
}

func (c *Classifier) complexity(original, text string) int {
	complexity := baseComplexity

	words := tokenize(original)
	switch {
	case len(words) < 8:
		complexity -= 2
	case len(words) > 50:
		complexity += 3
	case len(words) > 25:
		complexity += 2
	}

	if strings.Count(text, "?") > 1 {
		complexity++
	}

	technical := 0
	for _, keyword := range c.technicalKeywords {
		if strings.Contains(text, keyword) {
			technical++
		}
	}
	if technical >= 2 {
		complexity++
	}

	// Compound queries ("X and also Y, then Z") need more evidence than a
	// single question.
	for _, marker := range []string{" and also ", " as well as ", ", then ", "; "} {
		if strings.Contains(text, marker) {
			complexity++
			break
		}
	}

	if complexity < minComplexity {
		complexity = minComplexity
	}
	if complexity > maxComplexity {
		complexity = maxComplexity
	}
	return complexity
}

func (c *Classifier) domain(q models.Query, text string) string {
	if q.Domain != "" {
		return q.Domain
	}

	bestDomain := "general"
	bestScore := 0
	for _, domain := range sortedKeys(c.domains) {
		score := 0
		for _, keyword := range c.domains[domain] {
			if strings.Contains(text, keyword) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestDomain = domain
		}
	}
	return bestDomain
}

func (c *Classifier) queryType(text string) models.QueryType {
	for _, queryType := range c.typeOrder {
		for _, keyword := range c.types[string(queryType)] {
			if strings.Contains(text, keyword) {
				return queryType
			}
		}
	}
	return models.QueryTypeGeneral
}

// tokenize counts words with the prose tokenizer; the plain whitespace split
// is the fallback when tokenization fails on degenerate input.
func tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return strings.Fields(text)
	}

	tokens := doc.Tokens()
	words := make([]string, 0, len(tokens))
	for _, token := range tokens {
		words = append(words, token.Text)
	}
	return words
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic iteration keeps classification idempotent when two
	// domains score equally.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

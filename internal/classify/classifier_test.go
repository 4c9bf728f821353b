package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/pkg/config"
)

func TestUrgency(t *testing.T) {
	c := New(config.ClassifierConfig{})

	tests := []struct {
		name string
		q    models.Query
		want models.Urgency
	}{
		{
			name: "declared critical wins",
			q:    models.Query{Text: "what is a pointer", Urgency: models.UrgencyCritical},
			want: models.UrgencyCritical,
		},
		{
			name: "urgency keyword escalates",
			q:    models.Query{Text: "production down after the last deploy"},
			want: models.UrgencyCritical,
		},
		{
			name: "declared urgency passes through",
			q:    models.Query{Text: "what is a pointer", Urgency: models.UrgencyHigh},
			want: models.UrgencyHigh,
		},
		{
			name: "default is normal",
			q:    models.Query{Text: "what is a pointer"},
			want: models.UrgencyNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.q).Urgency)
		})
	}
}

func TestComplexity(t *testing.T) {
	c := New(config.ClassifierConfig{})

	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "short query scores low",
			text: "what time is it",
			want: 3,
		},
		{
			name: "medium query stays at base",
			text: "how do I configure a load balancer for my service",
			want: 5,
		},
		{
			name: "multiple questions add a point",
			text: "why does my deploy fail sometimes? and why is it slow otherwise? what should I check",
			want: 6,
		},
		{
			name: "two technical keywords add a point",
			text: "the api returns a timeout error on every single request today",
			want: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(models.Query{Text: tt.text}).Complexity
			assert.Equal(t, tt.want, got, "text: %q", tt.text)
		})
	}
}

func TestComplexityBounds(t *testing.T) {
	c := New(config.ClassifierConfig{})

	got := c.Classify(models.Query{Text: "hi"}).Complexity
	assert.GreaterOrEqual(t, got, 1)
	assert.LessOrEqual(t, got, 10)
}

func TestDomain(t *testing.T) {
	c := New(config.ClassifierConfig{})

	tests := []struct {
		name string
		q    models.Query
		want string
	}{
		{
			name: "declared domain wins",
			q:    models.Query{Text: "how do I set up aws lambda", Domain: "billing"},
			want: "billing",
		},
		{
			name: "cloud keywords",
			q:    models.Query{Text: "how do I set up aws lambda behind kubernetes"},
			want: "cloud",
		},
		{
			name: "database keywords",
			q:    models.Query{Text: "my postgres index scan is slow"},
			want: "database",
		},
		{
			name: "no match falls back to general",
			q:    models.Query{Text: "what should I cook tonight"},
			want: "general",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.q).Domain)
		})
	}
}

func TestQueryType(t *testing.T) {
	c := New(config.ClassifierConfig{})

	tests := []struct {
		text string
		want models.QueryType
	}{
		{"how to install postgres on debian", models.QueryTypeProcedural},
		{"what is kubernetes used for", models.QueryTypeFactual},
		{"postgres vs mysql for analytics workloads", models.QueryTypeComparative},
		{"should I use a message queue here", models.QueryTypeRecommendation},
		{"my service is broken after the upgrade", models.QueryTypeDiagnostic},
		// Diagnostic phrasing wins over the embedded factual phrasing.
		{"what is this error in my logs", models.QueryTypeDiagnostic},
		{"tell me something interesting", models.QueryTypeGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(models.Query{Text: tt.text}).Type)
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := New(config.ClassifierConfig{})
	q := models.Query{Text: "why does my aws lambda deploy fail with a permission error?"}

	first := c.Classify(q)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(q))
	}
}

func TestConfiguredKeywordsExtendDefaults(t *testing.T) {
	c := New(config.ClassifierConfig{
		UrgencyKeywords: []string{"sev1"},
		Domains:         map[string][]string{"payments": {"invoice", "refund"}},
	})

	assert.Equal(t, models.UrgencyCritical, c.Classify(models.Query{Text: "sev1 in checkout"}).Urgency)
	assert.Equal(t, "payments", c.Classify(models.Query{Text: "customer wants a refund for an invoice"}).Domain)
	// Defaults still apply.
	assert.Equal(t, models.UrgencyCritical, c.Classify(models.Query{Text: "urgent help needed"}).Urgency)
}

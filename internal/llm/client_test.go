package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    AnswerResult
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"answer":"restart the daemon","confidence":85,"reasoning":"documented behavior"}`,
			want:    AnswerResult{Answer: "restart the daemon", Confidence: 85, Reasoning: "documented behavior"},
		},
		{
			name: "fenced json block",
			content: "```json\n" +
				`{"answer":"use a pointer receiver","confidence":70,"reasoning":"idiomatic"}` +
				"\n```",
			want: AnswerResult{Answer: "use a pointer receiver", Confidence: 70, Reasoning: "idiomatic"},
		},
		{
			name: "bare fence",
			content: "```\n" +
				`{"answer":"yes","confidence":60}` +
				"\n```",
			want: AnswerResult{Answer: "yes", Confidence: 60},
		},
		{
			name:    "prose instead of json",
			content: "Sure! The answer is 42.",
			wantErr: true,
		},
		{
			name:    "missing answer",
			content: `{"confidence":80}`,
			wantErr: true,
		},
		{
			name:    "confidence out of range",
			content: `{"answer":"x","confidence":140}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnswer(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTableRef(t *testing.T) {
	tests := []struct {
		input       string
		expected    TableRef
		expectError bool
	}{
		{input: "p:d.t", expected: TableRef{ProjectID: "p", DatasetID: "d", TableID: "t"}},
		{input: "black_friday_analytics.tweets_raw", expected: TableRef{ProjectID: "default", DatasetID: "black_friday_analytics", TableID: "tweets_raw"}},
		{input: "tweets_raw", expectError: true},
		{input: "p:d", expectError: true},
		{input: ":d.t", expectError: true},
		{input: "d.", expectError: true},
		{input: "d.t.x", expectError: true},
		{input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref, err := ParseTableRef(tt.input, "default")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ref)
			assert.Equal(t, tt.expected, mustParse(t, ref.Name()))
		})
	}
}

func mustParse(t *testing.T, s string) TableRef {
	t.Helper()
	ref, err := ParseTableRef(s, "")
	require.NoError(t, err)
	return ref
}

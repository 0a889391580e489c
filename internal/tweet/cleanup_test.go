package tweet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func decode(t *testing.T, s string) Payload {
	t.Helper()
	p, err := Decode([]byte(s))
	require.NoError(t, err)
	return p
}

func TestCleanup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "null fields are removed",
			input:    `{"text":"hi","in_reply_to_status_id":null,"user":{"url":null,"name":"a"}}`,
			expected: `{"text":"hi","user":{"name":"a"}}`,
		},
		{
			name:     "ignored fields are removed at every level",
			input:    `{"text":"hi","contributors":[],"extended_tweet":{"full_text":"x"},"retweeted_status":{"scopes":{"a":1},"limit":3,"id":1}}`,
			expected: `{"text":"hi","retweeted_status":{"id":1}}`,
		},
		{
			name:     "created_at is reformatted",
			input:    `{"created_at":"Tue Oct 18 07:01:50 +0000 2016","user":{"Created_At":"Mon Nov 01 10:00:00 +0100 2010"}}`,
			expected: `{"created_at":"2016-10-18 07:01:50","user":{"Created_At":"2010-11-01 09:00:00"}}`,
		},
		{
			name:     "point coordinates object is kept, inner array stays flat",
			input:    `{"coordinates":{"type":"Point","coordinates":[-122.4,37.7]}}`,
			expected: `{"coordinates":{"type":"Point","coordinates":[-122.4,37.7]}}`,
		},
		{
			name:     "bounding box coordinates are flattened",
			input:    `{"place":{"bounding_box":{"type":"Polygon","coordinates":[[[-122.5,37.7],[-122.3,37.7]],[]]}}}`,
			expected: `{"place":{"bounding_box":{"type":"Polygon","coordinates":[-122.5,37.7,-122.3,37.7]}}}`,
		},
		{
			name:     "empty coordinates array stays empty",
			input:    `{"coordinates":[[]]}`,
			expected: `{"coordinates":[]}`,
		},
		{
			name:     "attributes become JSON text",
			input:    `{"place":{"attributes":{"street_address":"1 <Main> St","zip":12345}}}`,
			expected: `{"place":{"attributes":"{\"street_address\":\"1 <Main> St\",\"zip\":12345}"}}`,
		},
		{
			name:     "empty attributes",
			input:    `{"place":{"attributes":{}}}`,
			expected: `{"place":{"attributes":"{}"}}`,
		},
		{
			name:     "array elements are cleaned",
			input:    `{"entities":{"hashtags":[{"text":"bf","indices":[0,2],"video_info":{}},null]}}`,
			expected: `{"entities":{"hashtags":[{"text":"bf","indices":[0,2]},null]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cleanup(decode(t, tt.input))
			assert.Equal(t, decode(t, tt.expected), got)
		})
	}
}

func TestCleanup_Nil(t *testing.T) {
	assert.Nil(t, Cleanup(nil))
}

func TestCleaner_LogsUnparsableDates(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := NewCleaner(zap.New(core))

	got := c.Cleanup(decode(t, `{"created_at":"yesterday","user":{"created_at":42}}`))

	assert.Equal(t, decode(t, `{"created_at":"yesterday","user":{"created_at":42}}`), got)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Error while parsing date", entry.Message)
	assert.Equal(t, "yesterday", entry.ContextMap()["created_at"])
}

package main

import (
	"encoding/json"
	"testing"

	"github.com/itchyny/gojq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJQFilterRecords(t *testing.T) {
	tests := []struct {
		name        string
		record      string
		filter      string
		expectMatch bool
	}{
		{
			name:        "signature field match",
			record:      `{"signature": "abc", "parsed": {"slot": 10}}`,
			filter:      `.signature == "abc"`,
			expectMatch: true,
		},
		{
			name:        "signature field mismatch",
			record:      `{"signature": "abc"}`,
			filter:      `.signature == "xyz"`,
			expectMatch: false,
		},
		{
			name:        "nested path selection is truthy",
			record:      `{"parsed": {"transaction": {"message": {"instructions": [{}]}}}}`,
			filter:      `.parsed.transaction.message.instructions | length > 0`,
			expectMatch: true,
		},
		{
			name:        "missing path yields null",
			record:      `{"raw": {}}`,
			filter:      `.parsed.transaction`,
			expectMatch: false,
		},
		{
			name:        "numeric comparison",
			record:      `{"parsed": {"slot": 250}}`,
			filter:      `.parsed.slot > 100`,
			expectMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := gojq.Parse(tt.filter)
			require.NoError(t, err)
			code, err := gojq.Compile(query)
			require.NoError(t, err)

			var record interface{}
			require.NoError(t, json.Unmarshal([]byte(tt.record), &record))

			iter := code.Run(record)
			v, ok := iter.Next()
			require.True(t, ok)
			_, isErr := v.(error)
			require.False(t, isErr)

			assert.Equal(t, tt.expectMatch, isTruthy(v))
		})
	}
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0))
	assert.True(t, isTruthy(""))
	assert.True(t, isTruthy([]interface{}{}))
}

func TestCommandWiring(t *testing.T) {
	sweep := sweepCommand()
	assert.Equal(t, "sweep", sweep.Name)
	var flagNames []string
	for _, f := range sweep.Flags {
		flagNames = append(flagNames, f.Names()[0])
	}
	assert.Contains(t, flagNames, "file")
	assert.Contains(t, flagNames, "skip")
	assert.Contains(t, flagNames, "start-signature")

	assert.Equal(t, "fetch", fetchCommand().Name)
	assert.Equal(t, "has", cacheHasCommand().Name)
	assert.Equal(t, "get", cacheGetCommand().Name)
	assert.Equal(t, "inspect", cacheInspectCommand().Name)
}

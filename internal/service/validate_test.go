package service

import (
	"testing"

	"lol-reviewer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRiotID(t *testing.T) {
	tests := []struct {
		input   string
		name    string
		tag     string
		wantErr bool
	}{
		{input: "Faker#KR1", name: "Faker", tag: "KR1"},
		{input: "  Hide on bush # KR1 ", name: "Hide on bush", tag: "KR1"},
		{input: "Faker", wantErr: true},
		{input: "Fa#KR1", wantErr: true},
		{input: "ThisNameIsWayTooLong#KR1", wantErr: true},
		{input: "Faker#K1", wantErr: true},
		{input: "Faker#KR1234", wantErr: true},
		{input: "Faker#K-1", wantErr: true},
		{input: "#KR1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			name, tag, err := ParseRiotID(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.tag, tag)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	in, err := validateRequest(ReviewRequest{RiotID: "Faker#KR1", Region: " KR ", NumMatches: 10})
	require.NoError(t, err)
	assert.Equal(t, domain.Region("kr"), in.region)
	assert.Equal(t, 10, in.count)

	in, err = validateRequest(ReviewRequest{RiotID: "Faker#KR1", Region: "kr"})
	require.NoError(t, err)
	assert.Equal(t, 20, in.count, "missing count defaults to the maximum")

	_, err = validateRequest(ReviewRequest{RiotID: "Faker#KR1", Region: "kr", NumMatches: 21})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = validateRequest(ReviewRequest{RiotID: "Faker#KR1", Region: "xx1", NumMatches: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

package soapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "short", input: "ok", max: 5, want: "ok"},
		{name: "ascii", input: "abcdef", max: 3, want: "abc..."},
		{name: "inside a rune", input: "aé", max: 2, want: "a..."},
		{name: "three byte runes", input: strings.Repeat("日", 3), max: 4, want: "日..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestCallError_BodyStaysValidUTF8(t *testing.T) {
	err := &CallError{API: "v3", Method: MethodPost, URL: "https://so.example.com/api/v3/questions",
		StatusCode: http.StatusBadRequest, Body: "x" + strings.Repeat("ü", 400)}
	assert.True(t, utf8.ValidString(err.Error()))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "call error", err: fmt.Errorf("create: %w", &CallError{StatusCode: 500}), want: true},
		{name: "connectivity", err: &ConnectivityError{API: "2.3", StatusCode: 401}, want: true},
		{name: "no token", err: fmt.Errorf("exchange: %w", ErrNoAccessToken), want: true},
		{name: "empty response", err: ErrEmptyResponse, want: true},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "other", err: errors.New("disk full"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("hello world\n"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	if out.String() != "Name?\n> " {
		t.Fatalf("prompt %q", out.String())
	}
}

func TestGetSimpleTextEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetPassword(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()
	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }

	var out bytes.Buffer
	pw, err := GetPassword(&out)
	require.NoError(t, err)
	require.Equal(t, "s3cret", string(pw))
	require.Equal(t, "Enter password: \n", out.String())
}

func TestGetPassword_Error(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()
	readPassword = func(int) ([]byte, error) {
		return nil, errors.New("boom")
	}
	var out bytes.Buffer
	_, err := GetPassword(&out)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected map[string]any
		wantErr  bool
	}{
		{
			name:     "no pairs",
			input:    nil,
			expected: nil,
		},
		{
			name:     "simple pairs",
			input:    []string{"project=alpha", "owner=ann"},
			expected: map[string]any{"project": "alpha", "owner": "ann"},
		},
		{
			name:     "value may contain '='",
			input:    []string{"query=a=b"},
			expected: map[string]any{"query": "a=b"},
		},
		{
			name:     "name is trimmed, value kept",
			input:    []string{" name = value "},
			expected: map[string]any{"name": " value "},
		},
		{
			name:     "last value wins",
			input:    []string{"k=1", "k=2"},
			expected: map[string]any{"k": "2"},
		},
		{
			name:    "missing separator",
			input:   []string{"oops"},
			wantErr: true,
		},
		{
			name:    "empty name",
			input:   []string{"=v"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMetadata(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrBadMetadata)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"foodfinder/importer"
)

const dataset = `[
  {"restaurants": [
    {"restaurant": {"id": "1", "name": "Cafe", "cuisines": "Cafe",
      "location": {"longitude": "77.2", "latitude": "28.6", "address": "CP", "city": "Delhi"},
      "user_rating": {"aggregate_rating": "4.1", "rating_text": "Very Good", "votes": "12"}}},
    {"restaurant": {"id": "2", "name": "No Location"}}
  ]}
]`

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "restaurants.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImporterCommand_DryRun(t *testing.T) {
	path := writeDataset(t, dataset)

	err := newCommand().Run(context.Background(), []string{name, "--file", path, "--dry-run"})
	assert.NoError(t, err)
}

func TestImporterCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    func(t *testing.T) []string
		wantErr error
	}{
		{
			name: "missing file",
			args: func(t *testing.T) []string {
				return []string{name, "-f", filepath.Join(t.TempDir(), "missing.json"), "--dry-run"}
			},
		},
		{
			name: "empty dataset",
			args: func(t *testing.T) []string {
				return []string{name, "--file", writeDataset(t, "[]"), "--dry-run"}
			},
			wantErr: importer.ErrEmptyDataset,
		},
		{
			name: "no valid restaurants",
			args: func(t *testing.T) []string {
				return []string{name, "--file", writeDataset(t, `[{"restaurants": [{}]}]`), "--dry-run"}
			},
			wantErr: importer.ErrNoRestaurants,
		},
		{
			name: "zero batch size",
			args: func(t *testing.T) []string {
				return []string{name, "--file", writeDataset(t, dataset), "--batch-size", "0", "--dry-run"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newCommand().Run(context.Background(), tt.args(t))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestParseOptions(t *testing.T) {
	var got importer.Options
	cmd := newCommand()
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		var err error
		got, err = parseOptions(c)
		return err
	}

	require.NoError(t, cmd.Run(context.Background(), []string{name, "--batch-size", "50", "--upsert"}))
	assert.Equal(t, importer.Options{BatchSize: 50, Upsert: true}, got)
}

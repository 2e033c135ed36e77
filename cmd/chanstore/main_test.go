package main

import (
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/chanstore/internal/domain/model"
	"github.com/bigkaa/chanstore/internal/storage/journal"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestParseMessageID(t *testing.T) {
	id, err := parseMessageID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, s := range []string{"", "0", "-5", "abc", "4.2"} {
		_, err := parseMessageID(s)
		assert.Error(t, err, s)
	}
}

func TestFormatRecord(t *testing.T) {
	thumb := "AgAD-thumb"
	out := formatRecord(model.FileRecord{
		FileName:    "report.pdf",
		MimeType:    "application/pdf",
		MessageID:   501,
		FileHandle:  "AgAD",
		ThumbHandle: &thumb,
		CreatedAt:   1700000000000,
	})

	assert.Contains(t, out, "501")
	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "application/pdf, превью")
}

func TestFormatOrphan(t *testing.T) {
	out := formatOrphan(&journal.Entry{
		TxID:      "6f1c2a4e-8b1d-4d2a-9f3e-0a1b2c3d4e5f",
		FileName:  "report.pdf",
		Status:    journal.StatusOrphaned,
		Record:    &model.FileRecord{MessageID: 501},
		Reason:    "хранилище недоступно",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	assert.Contains(t, out, "6f1c2a4e-8b1d-4d2a-9f3e-0a1b2c3d4e5f")
	assert.Contains(t, out, "message_id: 501")
	assert.Contains(t, out, "причина: хранилище недоступно")
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"files", "list"},
		{"files", "rename"},
		{"files", "delete"},
		{"orphans", "list"},
		{"orphans", "adopt"},
		{"orphans", "discard"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/bigkaa/chanstore/internal/domain/model"
	"github.com/bigkaa/chanstore/internal/storage/journal"
)

var (
	faint = color.New(color.Faint).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
)

func success(msg string) string {
	return green("✓") + " " + msg
}

func failure(msg string) string {
	return red("✗") + " " + msg
}

// formatRecord — строка списка файлов.
func formatRecord(rec model.FileRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s  %s\n", cyan(fmt.Sprintf("%8d", rec.MessageID)), bold(rec.FileName)))

	meta := []string{rec.MimeType}
	if rec.HasThumb() {
		meta = append(meta, "превью")
	}
	sb.WriteString(fmt.Sprintf("            %s %s\n",
		faint(rec.CreatedTime().Local().Format("2006-01-02 15:04")),
		faint(strings.Join(meta, ", "))))
	return sb.String()
}

// formatOrphan — строка списка расхождений журнала.
func formatOrphan(e *journal.Entry) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s  %s\n", cyan(e.TxID), bold(e.FileName)))
	if e.Record != nil {
		sb.WriteString(fmt.Sprintf("            %s %d\n", faint("message_id:"), e.Record.MessageID))
	}
	if e.Reason != "" {
		sb.WriteString(fmt.Sprintf("            %s %s\n", faint("причина:"), e.Reason))
	}
	sb.WriteString(fmt.Sprintf("            %s %s\n", faint("начата:"), faint(e.StartedAt.Local().Format(time.DateTime))))
	return sb.String()
}

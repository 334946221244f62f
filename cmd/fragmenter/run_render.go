package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fragmenter/internal/conversion"
	"fragmenter/internal/sink"
)

func renderRunSummary(stats *conversion.Statistics, colorize bool) string {
	if stats == nil {
		return "No statistics recorded\n"
	}
	var b strings.Builder
	for _, line := range renderSectionHeader("Conversion summary", colorize) {
		b.WriteString(line + "\n")
	}

	overall := statusOK
	switch {
	case stats.Interrupted:
		overall = statusWarn
	case stats.Failed > 0 && stats.Succeeded == 0:
		overall = statusError
	case stats.Failed > 0 || stats.PartiallyStored > 0:
		overall = statusWarn
	}
	outcome := fmt.Sprintf("%d/%d succeeded (%.1f%%)", stats.Succeeded, stats.Total, stats.SuccessRate())
	if stats.Interrupted {
		outcome += ", interrupted"
	}
	b.WriteString(renderStatusLine("Result", overall, outcome, colorize) + "\n")
	b.WriteString(renderStatusLine("Run", statusInfo, stats.RunID, colorize) + "\n")
	b.WriteString(renderStatusLine("Duration", statusInfo, formatSeconds(stats.TotalSeconds), colorize) + "\n")
	details := fmt.Sprintf("failed %d, skipped %d, partially stored %d, degraded %d",
		stats.Failed, stats.Skipped, stats.PartiallyStored, stats.Degraded)
	b.WriteString(renderStatusLine("Breakdown", statusInfo, details, colorize) + "\n\n")

	b.WriteString(renderSinkCounts(stats))
	b.WriteString("\n")
	if len(stats.Items) > 0 {
		b.WriteString(renderItems(stats.Items))
		b.WriteString("\n")
	}
	return b.String()
}

func renderSinkCounts(stats *conversion.Statistics) string {
	rows := [][]string{
		sinkRow(sink.NamePrimary, stats.Primary),
		sinkRow(sink.NameSecondary, stats.Secondary),
	}
	return renderTable(
		[]string{"Sink", "Configured", "Stored", "Already present", "Failed", "Not attempted"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

func sinkRow(name string, counts conversion.SinkCounts) []string {
	return []string{
		name,
		yesNo(counts.Configured),
		strconv.Itoa(counts.Stored),
		strconv.Itoa(counts.AlreadyPresent),
		strconv.Itoa(counts.Failed),
		strconv.Itoa(counts.NotAttempted),
	}
}

func renderItems(items []conversion.ItemResult) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.Name,
			string(item.Status),
			item.Tier,
			producerLabel(item),
			formatSeconds(item.ConversionSeconds),
			sinkLabel(item, sink.NamePrimary),
			sinkLabel(item, sink.NameSecondary),
			itemDetail(item),
		})
	}
	return renderTable(
		[]string{"File", "Status", "Tier", "Producer", "Time", "Primary", "Secondary", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func producerLabel(item conversion.ItemResult) string {
	if item.Producer == "" {
		return "-"
	}
	if item.Degraded {
		return string(item.Producer) + " (degraded)"
	}
	return string(item.Producer)
}

func sinkLabel(item conversion.ItemResult, name string) string {
	attempt, ok := item.Sink(name)
	if !ok {
		return "-"
	}
	return string(attempt.Status)
}

func itemDetail(item conversion.ItemResult) string {
	detail := item.Message
	if detail == "" && item.Reason != "" {
		detail = item.Reason
	}
	if detail == "" && item.WorkerReason != "" {
		detail = "worker " + item.WorkerReason
	}
	const maxDetail = 60
	if runes := []rune(detail); len(runes) > maxDetail {
		detail = string(runes[:maxDetail-3]) + "..."
	}
	return detail
}

func formatSeconds(seconds float64) string {
	return (time.Duration(seconds * float64(time.Second))).Round(10 * time.Millisecond).String()
}

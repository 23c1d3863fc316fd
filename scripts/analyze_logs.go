package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

type LogStats struct {
	TotalErrors         int
	PaymentsInitiated   int
	InitiateFailures    int
	VerifyFailures      int
	RefundFailures      int
	SignatureRejections int
	DuplicateWebhooks   int
	UPIExpired          int
	Transitions         map[string]int
	GatewayFailures     map[string]int
	ErrorPatterns       map[string]int
}

var (
	gatewayPattern    = regexp.MustCompile(`[Gg]ateway (\d+)`)
	transitionPattern = regexp.MustCompile(`moved to ([A-Z_]+) via (\w+)`)
	sweepPattern      = regexp.MustCompile(`UPI sweep expired (\d+) transaction`)
	timestampPattern  = regexp.MustCompile(`^\S+\s+\S+\s+\S+\s+\S+\s+`)
	digitsPattern     = regexp.MustCompile(`\d+`)
)

func main() {
	today := time.Now().Format("2006-01-02")
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "./logs"
	}

	stats := &LogStats{
		Transitions:     make(map[string]int),
		GatewayFailures: make(map[string]int),
		ErrorPatterns:   make(map[string]int),
	}

	analyzeErrorLogs(filepath.Join(logDir, fmt.Sprintf("error-%s.log", today)), stats)
	analyzeInfoLogs(filepath.Join(logDir, fmt.Sprintf("info-%s.log", today)), stats)

	printReport(stats)
}

func analyzeErrorLogs(logFile string, stats *LogStats) {
	file, err := os.Open(logFile)
	if err != nil {
		fmt.Printf("Error opening log file %s: %v\n", logFile, err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		stats.TotalErrors++

		switch {
		case strings.Contains(line, "failed to initiate payment"):
			stats.InitiateFailures++
			countGateway(line, stats)
		case strings.Contains(line, "Gateway verify failed"):
			stats.VerifyFailures++
		case strings.Contains(line, "Gateway refund failed"):
			stats.RefundFailures++
		case strings.Contains(line, "webhook rejected"),
			strings.Contains(line, "callback rejected"),
			strings.Contains(line, "Rejected") && strings.Contains(line, "webhook"):
			stats.SignatureRejections++
			countGateway(line, stats)
		}

		extractErrorPattern(line, stats)
	}
}

func analyzeInfoLogs(logFile string, stats *LogStats) {
	file, err := os.Open(logFile)
	if err != nil {
		fmt.Printf("Error opening log file %s: %v\n", logFile, err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.Contains(line, "initiated via gateway") {
			stats.PaymentsInitiated++
		}
		if strings.Contains(line, "Duplicate") && strings.Contains(line, "event") {
			stats.DuplicateWebhooks++
		}
		if m := transitionPattern.FindStringSubmatch(line); m != nil {
			stats.Transitions[m[1]+" via "+m[2]]++
		}
		if m := sweepPattern.FindStringSubmatch(line); m != nil {
			var n int
			fmt.Sscanf(m[1], "%d", &n)
			stats.UPIExpired += n
		}
	}
}

func countGateway(line string, stats *LogStats) {
	if m := gatewayPattern.FindStringSubmatch(line); m != nil {
		stats.GatewayFailures["gateway "+m[1]]++
	}
}

func extractErrorPattern(line string, stats *LogStats) {
	// Drop the time, level, logger and caller columns and any numbers so that
	// the same failure on different transactions groups together.
	msg := timestampPattern.ReplaceAllString(line, "")
	msg = digitsPattern.ReplaceAllString(msg, "N")
	if i := strings.Index(msg, ": "); i > 0 {
		msg = msg[:i]
	}
	stats.ErrorPatterns[strings.TrimSpace(msg)]++
}

func printReport(stats *LogStats) {
	fmt.Println("\n=== Payment Log Analysis Report ===")
	fmt.Println("Generated:", time.Now().Format("2006-01-02 15:04:05"))

	fmt.Println("\n1. Payment Flow:")
	fmt.Printf("   Payments Initiated: %d\n", stats.PaymentsInitiated)
	fmt.Printf("   Initiate Failures: %d\n", stats.InitiateFailures)
	fmt.Printf("   Verify Failures: %d\n", stats.VerifyFailures)
	fmt.Printf("   Refund Failures: %d\n", stats.RefundFailures)
	fmt.Printf("   UPI Transactions Expired: %d\n", stats.UPIExpired)

	fmt.Println("\n2. Webhooks:")
	fmt.Printf("   Signature Rejections: %d\n", stats.SignatureRejections)
	fmt.Printf("   Duplicates Ignored: %d\n", stats.DuplicateWebhooks)

	fmt.Println("\n3. Status Transitions:")
	printTop(stats.Transitions, 10, "transitions")

	fmt.Println("\n4. Failing Gateways:")
	printTop(stats.GatewayFailures, 5, "failures")

	fmt.Println("\n5. Error Statistics:")
	fmt.Printf("   Total Errors: %d\n", stats.TotalErrors)
	printTop(stats.ErrorPatterns, 5, "occurrences")
}

func printTop(counts map[string]int, limit int, unit string) {
	type entry struct {
		key   string
		count int
	}

	var entries []entry
	for k, n := range counts {
		entries = append(entries, entry{k, n})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count == entries[j].count {
			return entries[i].key < entries[j].key
		}
		return entries[i].count > entries[j].count
	})

	for i, e := range entries {
		if i >= limit {
			break
		}
		fmt.Printf("   %s: %d %s\n", e.key, e.count, unit)
	}
}

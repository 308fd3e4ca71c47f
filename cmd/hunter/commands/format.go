package commands

import (
	"fmt"
	"time"
)

// Common formatting utilities so every command prints the same shape.

// PrintRunHeader prints a formatted run header
func PrintRunHeader(title string, details map[string]string, order []string) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  %s\n", title)
	fmt.Println("───────────────────────────────────────────────────────────")
	for _, key := range order {
		fmt.Printf("  %-10s: %s\n", key, details[key])
	}
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintRunCompletion prints a run completion message
func PrintRunCompletion(duration time.Duration) {
	fmt.Println()
	fmt.Printf("✅ Completed in %.2fs\n", duration.Seconds())
}

// PrintRunFailure prints a run failure message
func PrintRunFailure(duration time.Duration, reason string) {
	fmt.Println()
	fmt.Printf("❌ Failed after %.2fs: %s\n", duration.Seconds(), reason)
}

// PrintCount prints a labeled counter line
func PrintCount(label string, n int) {
	fmt.Printf("  %-12s: %d\n", label, n)
}

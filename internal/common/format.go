package common

import (
	"fmt"
	"strings"

	"streamvault-go/internal/address"
	"streamvault-go/internal/models"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// ActivityIcon returns the glyph shown next to an entry of the given kind
func ActivityIcon(kind models.ActivityKind) string {
	switch kind {
	case models.ActivityOk:
		return "✅"
	case models.ActivityWarn:
		return "⚠️ "
	case models.ActivityTx:
		return "📤"
	default:
		return "ℹ️ "
	}
}

// TxLink joins an explorer base URL and a transaction hash
func TxLink(explorerUrl, txHash string) string {
	if txHash == "" {
		return ""
	}
	if explorerUrl == "" {
		return txHash
	}
	return strings.TrimRight(explorerUrl, "/") + "/tx/" + txHash
}

// PrintActivity prints entries newest first as a box-drawn list
func PrintActivity(entries []models.ActivityEntry, explorerUrl string) {
	if len(entries) == 0 {
		fmt.Println("└  (no activity)")
		return
	}
	for i, entry := range entries {
		isLast := i == len(entries)-1
		fmt.Printf("%s%s %s  %s\n", BoxPrefix(isLast), ActivityIcon(entry.Kind),
			entry.Timestamp.Format("15:04:05"), entry.Title)
		if entry.Detail != "" {
			fmt.Printf("%s   %s\n", BoxDetailPrefix(isLast), entry.Detail)
		}
		if link := TxLink(explorerUrl, entry.TxHash); link != "" {
			fmt.Printf("%s   %s\n", BoxDetailPrefix(isLast), link)
		}
	}
}

// FormatAttempt renders a write's phase with its short transaction hash
func FormatAttempt(a models.TransactionAttempt) string {
	var b strings.Builder
	b.WriteString(string(a.Action))
	b.WriteString(": ")
	b.WriteString(string(a.Phase))
	if a.HasHandle {
		b.WriteString(" (")
		b.WriteString(address.ShortAddress(a.Handle.Hex()))
		b.WriteString(")")
	}
	if msg := a.ErrorMessage(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

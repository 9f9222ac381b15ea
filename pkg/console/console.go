package console

import "fmt"

const (
	ColorGreen     = "\033[32m"
	ColorGray      = "\033[90m"
	ColorLightGray = "\033[37m"
	ColorReset     = "\033[0m"
)

func PrintBanner(version, ip, port string) {
	fmt.Printf("  %s%s Gosplash %s%sv%s%s\n\n", ColorLightGray, "\U0001F50E", ColorGreen, ColorGray, version, ColorReset)
	fmt.Printf("  %s%sLocal:   %sws://localhost:%s%s\n", ColorLightGray, "➜ ", ColorReset, port, ColorReset)
	fmt.Printf("  %s%sNetwork: %sws://%s:%s%s\n\n", ColorGray, "➜ ", ColorReset, ip, port, ColorReset)
}

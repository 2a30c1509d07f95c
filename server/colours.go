package server

// ANSI colours for the DEV route listing.
const (
	green   = "\033[32m"
	blue    = "\033[34m"
	magenta = "\033[35m"
	gray    = "\033[90m"

	resetColor = "\033[0m"
)

var methodColors = map[string]string{
	"GET":     green,
	"POST":    blue,
	"OPTIONS": gray,
	"*":       magenta,
}

func colorMethod(method string) string {
	color, ok := methodColors[method]
	if !ok {
		return method
	}
	return color + method + resetColor
}

package ui

// Цвета терминала.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

const (
	IconCheckmark = "✓"
	IconCross     = "✗"
	IconStop      = "■"
	IconClock     = "⏳"
	IconRobot     = "🤖"
	IconBell      = "🔔"
	IconList      = "📋"
	IconChart     = "📊"
	IconBulb      = "💡"
)

type outcomeStyle struct {
	icon, color, text string
}

// Ключи совпадают с agent.Outcome.
var outcomeStyles = map[string]outcomeStyle{
	"submitted": {IconCheckmark, ColorGreen, "отправлен"},
	"abandoned": {IconCross, ColorRed, "брошен"},
	"timed_out": {IconClock, ColorYellow, "таймаут"},
	"skipped":   {IconStop, ColorGray, "пропущен"},
}

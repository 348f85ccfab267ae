package ui

import (
	"fmt"
	"io"
	"strings"
)

// FormatOutcome возвращает иконку, цвет и подпись для исхода отклика.
func FormatOutcome(outcome string) (icon, color, text string) {
	st, ok := outcomeStyles[outcome]
	if !ok {
		return IconClock, ColorYellow, outcome
	}
	return st.icon, st.color, st.text
}

// Success, Fail и Info печатают однострочные сообщения команд.
func Success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ColorGreen+IconCheckmark+" "+format+ColorReset+"\n", args...)
}

func Fail(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ColorRed+IconCross+" "+format+ColorReset+"\n", args...)
}

func Info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ColorCyan+format+ColorReset+"\n", args...)
}

// Truncate обрезает строку до n рун для табличного вывода.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

package ui

import (
	"fmt"
	"io"
)

// PrintBanner выводит заголовок при запуске агента.
func PrintBanner(w io.Writer, addr string) {
	fmt.Fprintln(w, ColorBold+IconRobot+" Job Agent"+ColorReset)
	fmt.Fprintln(w, ColorGray+"Автоматические отклики через быстрый отклик LinkedIn"+ColorReset)
	fmt.Fprintln(w)
	fmt.Fprintln(w, ColorCyan+IconBulb+" Управление:"+ColorReset+" http://"+addr)
	fmt.Fprintln(w, "  "+ColorGreen+"job-agent start"+ColorReset+"     - включить агента")
	fmt.Fprintln(w, "  "+ColorGreen+"job-agent stop"+ColorReset+"      - остановить агента")
	fmt.Fprintln(w, "  "+ColorGreen+"job-agent status"+ColorReset+"    - счетчик и последние отклики")
	fmt.Fprintln(w)
}

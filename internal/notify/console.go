// Package notify доставляет уведомления оператору: в терминал и в лог.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"jobAgent/internal/cli/ui"
	"jobAgent/internal/logger"

	"go.uber.org/zap"
)

// Console печатает уведомления в терминал и дублирует их в лог.
type Console struct {
	mu  sync.Mutex
	w   io.Writer
	log *logger.Zap
	now func() time.Time
}

func NewConsole(w io.Writer, log *logger.Zap) *Console {
	return &Console{w: w, log: log, now: time.Now}
}

func (c *Console) Notify(ctx context.Context, title, message string) {
	c.log.Info("Уведомление оператору", zap.String("title", title), zap.String("message", message))

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s%s %s %s%s%s %s\n",
		ui.ColorGray, c.now().Format("15:04:05"),
		ui.IconBell, ui.ColorBold+ui.ColorYellow, title, ui.ColorReset, message)
}

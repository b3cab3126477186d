package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"planboard/internal/core/ports"
	"planboard/internal/data/history"
)

// runUI drives the watch loop into a bubbletea program until the user quits
// or ctx is cancelled.
func runUI(ctx context.Context, rt *runtime) error {
	var trend *history.TrendReport
	if rt.svc.HistoryEnabled() {
		report, err := rt.svc.HistoryTrend(ctx, ports.HistoryTrendRequest{Window: 24 * time.Hour})
		if err == nil {
			trend = &report
		} else {
			slog.Debug("no trend overlay", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := initialModel(rt.svc, trend)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- rt.svc.Watch(ctx, func(update ports.WatchUpdate) {
			p.Send(updateMsgFrom(update))
		})
	}()

	_, err := p.Run()
	cancel()
	if werr := <-watchErr; werr != nil && err == nil {
		err = werr
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

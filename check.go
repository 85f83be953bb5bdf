package main

import (
	"context"
	"fmt"
	"io"
)

// checkConnections confirms both sets of credentials, and that the
// configured calendar is reachable, without writing anything.
func checkConnections(ctx context.Context, a *app, w io.Writer) error {
	if err := a.jira.CheckAuth(ctx); err != nil {
		return remoteError("jira", "check auth", err)
	}
	fmt.Fprintln(w, "✅ Jira credentials OK")

	provider, err := a.calendars.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := provider.GetCalendar(ctx, a.calendarID); err != nil {
		return remoteError("calendar", "get calendar "+a.calendarID, err)
	}
	fmt.Fprintf(w, "✅ %s credentials OK\n", a.calendars.ProviderName())
	return nil
}

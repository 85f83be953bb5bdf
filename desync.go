package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

// desyncEvents removes every calendar event the push sync recorded and
// forgets the links. Events already gone from the calendar are skipped.
// Issues created by the pull sync are left alone.
func desyncEvents(ctx context.Context, links *LinkStore, calendars CalendarSource, logger *zap.Logger) error {
	if links == nil {
		return errNoLinkStore
	}

	pushed, err := links.List(ctx, directionPush)
	if err != nil {
		return err
	}
	if len(pushed) == 0 {
		logger.Info("nothing to desync")
		return nil
	}

	provider, err := calendars.Acquire(ctx)
	if err != nil {
		return err
	}

	for _, link := range pushed {
		err := provider.DeleteEvent(ctx, link.TargetContainer, link.TargetID)
		switch {
		case err == nil:
			logger.Info("deleted mirrored event", zap.String("issue", link.SourceID), zap.String("event_id", link.TargetID))
		case isNotFound(err):
			logger.Warn("mirrored event not found in calendar", zap.String("event_id", link.TargetID))
		default:
			return remoteError("calendar", "delete event "+link.TargetID, err)
		}

		if err := links.Delete(ctx, link.Direction, link.SourceID); err != nil {
			return err
		}
	}

	logger.Info("desync completed", zap.Int("count", len(pushed)))
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "404")
}

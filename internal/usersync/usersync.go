// Package usersync runs one full pass: get a session, read every user and the
// current user, and persist them together.
package usersync

import (
	"context"
	"fmt"
	"sunvoy-scraper/internal/sunvoy"
	"sunvoy-scraper/lib/telemetry"
)

const (
	report_syncer_run = "syncer.run"
)

// SessionProvider hands out a client bound to a live session.
type SessionProvider interface {
	Ensure(ctx context.Context) (*sunvoy.Client, error)
}

// UsersWriter persists the final collection, it must not leave a partial result behind.
type UsersWriter interface {
	WriteUsers(ctx context.Context, users []sunvoy.User) error
}

type Syncer struct {
	sessions SessionProvider
	out      UsersWriter
	tel      telemetry.API
}

func NewSyncer(sessions SessionProvider, out UsersWriter, tel telemetry.API) Syncer {
	return Syncer{
		sessions: sessions,
		out:      out,
		tel:      telemetry.NewScopedAPI("usersync", tel),
	}
}

// Run writes [all users..., current user]. Every record is validated before anything is
// written, so any failure leaves the previous output untouched.
func (s Syncer) Run(ctx context.Context) ([]sunvoy.User, error) {
	client, err := s.sessions.Ensure(ctx)
	if err != nil {
		s.tel.ReportBroken(report_syncer_run, err)
		return nil, fmt.Errorf("ensure session: %w", err)
	}

	users, err := client.FetchAllUsers(ctx)
	if err != nil {
		s.tel.ReportBroken(report_syncer_run, err)
		return nil, fmt.Errorf("fetch all users: %w", err)
	}
	me, err := client.FetchCurrentUser(ctx)
	if err != nil {
		s.tel.ReportBroken(report_syncer_run, err)
		return nil, fmt.Errorf("fetch current user: %w", err)
	}

	raws := append(users, me)
	result := make([]sunvoy.User, 0, len(raws))
	for i, raw := range raws {
		user, err := sunvoy.NewUser(raw)
		if err != nil {
			s.tel.ReportBroken(report_syncer_run, err, i)
			return nil, fmt.Errorf("user %d: %w", i, err)
		}
		result = append(result, user)
	}

	err = s.out.WriteUsers(ctx, result)
	if err != nil {
		s.tel.ReportBroken(report_syncer_run, err)
		return nil, fmt.Errorf("write users: %w", err)
	}
	s.tel.ReportCount(report_syncer_run, int64(len(result)))

	return result, nil
}

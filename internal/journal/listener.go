package journal

import (
	"context"
	"time"

	"github.com/renholm/switchboard/internal/dispatcher"
	"github.com/renholm/switchboard/internal/log"
)

// recorderListener journals every dispatch table mutation.
type recorderListener struct {
	rec     Recorder
	timeout time.Duration
}

// NewListener adapts a Recorder onto dispatcher.Listener. Write
// failures are logged and swallowed: the journal observes the table, it
// must never veto a mutation that already happened.
func NewListener(rec Recorder) dispatcher.Listener {
	return &recorderListener{rec: rec, timeout: 5 * time.Second}
}

func (l *recorderListener) RegistrationAdded(r dispatcher.Registration) {
	l.record(ActionAdded, r)
}

func (l *recorderListener) RegistrationRemoved(r dispatcher.Registration) {
	l.record(ActionRemoved, r)
}

func (l *recorderListener) record(action Action, r dispatcher.Registration) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	err := l.rec.Record(ctx, Entry{
		RegistrationID: string(r.ID),
		Action:         action,
		Kind:           string(r.Kind),
		Operator:       r.Operator.String(),
		Namespace:      r.Namespace,
		Key:            r.Key.String(),
		Debug:          r.Debug,
	})
	if err != nil {
		log.ErrorErr(log.CatJournal, "journal write failed", err,
			"action", string(action), "kind", string(r.Kind))
	}
}

package session

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"

	"expensetracker/internal/log"
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("session: store closed")

func (s *Store) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// run is the single writer. Marks coalesce in the one-slot dirty channel,
// and each write persists whatever the state is at that moment, so the last
// mutation always wins.
func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case <-s.dirty:
			s.lastErr = s.persist()
		case reply := <-s.flushReq:
			select {
			case <-s.dirty:
				s.lastErr = s.persist()
			default:
			}
			reply <- s.lastErr
		case <-s.stop:
			select {
			case <-s.dirty:
				s.lastErr = s.persist()
			default:
			}
			return
		}
	}
}

func (s *Store) persist() error {
	s.mu.RLock()
	data, err := encodeRecord(s.user, s.credential)
	s.mu.RUnlock()
	if err != nil {
		s.logger.LogError(context.Background(), "Failed to encode session", err, log.OpPersist, nil)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	b := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		if err := s.kv.Set(ctx, StorageKey, data); err != nil {
			s.logger.Debug("Session write failed, retrying", log.FieldError, err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.logger.LogError(ctx, "Failed to persist session", err, log.OpPersist, nil)
		return err
	}
	return nil
}

// Flush blocks until every mutation made before the call has been written,
// and returns the outcome of the most recent write.
func (s *Store) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case s.flushReq <- reply:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any pending change and stops the writer. Mutations after
// Close stay in memory only.
func (s *Store) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
		return s.lastErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

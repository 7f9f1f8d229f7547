package storage

import (
	"sync"

	"github.com/mcoot/avalon/internal/model"
)

// Feed is one consumer's change stream. Publish never blocks the committer: while the
// consumer lags, queued versions of the same game collapse into the newest one, so the
// latest committed version of every game is always delivered.
type Feed struct {
	out  chan *model.Game
	wake chan struct{}
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	pending map[model.GameID]*model.Game
	order   []model.GameID
}

// NewFeed starts a feed; Close stops it and closes C
func NewFeed() *Feed {
	f := &Feed{
		out:     make(chan *model.Game, ChangeBufferSize),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		pending: make(map[model.GameID]*model.Game),
	}
	go f.run()
	return f
}

// C is the consumer side of the feed
func (f *Feed) C() <-chan *model.Game {
	return f.out
}

// Publish queues a committed game, replacing any older queued version of it
func (f *Feed) Publish(game *model.Game) {
	f.mu.Lock()
	if queued, ok := f.pending[game.ID]; ok {
		if game.Version >= queued.Version {
			f.pending[game.ID] = game
		}
	} else {
		f.pending[game.ID] = game
		f.order = append(f.order, game.ID)
	}
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Close stops delivery. Safe to call more than once.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}

// Pending returns the number of games waiting for delivery
func (f *Feed) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

func (f *Feed) run() {
	defer close(f.out)
	for {
		game := f.next()
		if game == nil {
			select {
			case <-f.wake:
				continue
			case <-f.done:
				return
			}
		}
		select {
		case f.out <- game:
		case <-f.done:
			return
		}
	}
}

func (f *Feed) next() *model.Game {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.order) == 0 {
		return nil
	}
	id := f.order[0]
	f.order = f.order[1:]
	game := f.pending[id]
	delete(f.pending, id)
	return game
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bilgisen/newsbot/internal/metrics"
	"github.com/bilgisen/newsbot/internal/models"
	"github.com/bilgisen/newsbot/internal/storage"
	"github.com/rs/zerolog"
)

// ErrWorkerClosed is returned for commands enqueued after Close.
var ErrWorkerClosed = errors.New("persistence worker is closed")

// PostWriter is the part of the post store the worker writes to.
type PostWriter interface {
	Create(ctx context.Context, p *models.Post) error
	UpdateStatus(ctx context.Context, id string, status models.Status) error
}

// Options tunes a Worker.
type Options struct {
	// PollTimeout bounds how long the consumer sleeps on an empty queue.
	PollTimeout time.Duration
	// OpTimeout bounds a single storage operation.
	OpTimeout time.Duration
}

type envelope struct {
	cmd   Command
	reply chan error
}

// Worker serialises every storage write through a single goroutine.
// Producers never block: the queue is unbounded.
type Worker struct {
	posts  PostWriter
	ledger storage.Ledger
	blobs  storage.BlobStore
	log    zerolog.Logger
	opts   Options

	mu     sync.Mutex
	queue  []envelope
	closed bool

	notify    chan struct{}
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

func New(posts PostWriter, ledger storage.Ledger, blobs storage.BlobStore, log zerolog.Logger, opts Options) *Worker {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = time.Second
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 30 * time.Second
	}
	return &Worker{
		posts:  posts,
		ledger: ledger,
		blobs:  blobs,
		log:    log,
		opts:   opts,
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Calling it more than once is a no-op.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// Enqueue queues cmd without waiting for it to run.
func (w *Worker) Enqueue(cmd Command) error {
	return w.push(envelope{cmd: cmd})
}

// Do queues cmd and waits for its result. If ctx ends first the command
// still runs; only the wait is abandoned.
func (w *Worker) Do(ctx context.Context, cmd Command) error {
	reply := make(chan error, 1)
	if err := w.push(envelope{cmd: cmd, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) SavePost(ctx context.Context, cmd SavePost) error {
	return w.Do(ctx, cmd)
}

func (w *Worker) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	return w.Do(ctx, UpdateStatus{ID: id, Status: status})
}

func (w *Worker) MarkSeen(ctx context.Context, url string) error {
	return w.Do(ctx, MarkSeen{URL: url})
}

// Close stops intake, runs every command already queued and returns once
// the consumer has exited.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.stop)
	})
	w.Start()
	<-w.done
	return nil
}

func (w *Worker) push(env envelope) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWorkerClosed
	}
	w.queue = append(w.queue, env)
	depth := len(w.queue)
	w.mu.Unlock()

	metrics.WorkerQueueDepth.Set(float64(depth))
	select {
	case w.notify <- struct{}{}:
	default:
	}
	return nil
}

func (w *Worker) pop() (envelope, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return envelope{}, false
	}
	env := w.queue[0]
	w.queue[0] = envelope{}
	w.queue = w.queue[1:]
	metrics.WorkerQueueDepth.Set(float64(len(w.queue)))
	return env, true
}

func (w *Worker) drain() {
	for {
		env, ok := w.pop()
		if !ok {
			return
		}
		w.execute(env)
	}
}

func (w *Worker) run() {
	defer close(w.done)

	timer := time.NewTimer(w.opts.PollTimeout)
	defer timer.Stop()

	for {
		w.drain()

		timer.Reset(w.opts.PollTimeout)
		select {
		case <-w.notify:
		case <-timer.C:
		case <-w.stop:
			w.drain()
			w.log.Info().Msg("persistence worker drained")
			return
		}
	}
}

func (w *Worker) execute(env envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), w.opts.OpTimeout)
	defer cancel()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in %s: %v", env.cmd.Kind(), r)
			}
		}()
		switch cmd := env.cmd.(type) {
		case SavePost:
			err = w.savePost(ctx, cmd)
		case UpdateStatus:
			err = w.updateStatus(ctx, cmd)
		case MarkSeen:
			err = w.markSeen(ctx, cmd)
		default:
			err = fmt.Errorf("unknown command %T", env.cmd)
		}
	}()

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrAlreadySeen):
		result = "duplicate"
		w.log.Debug().Err(err).Str("kind", string(env.cmd.Kind())).Msg("url already claimed")
	case errors.Is(err, storage.ErrDuplicateURL), errors.Is(err, storage.ErrPostNotFound), errors.Is(err, storage.ErrStatusFinal):
		result = "rejected"
		w.log.Warn().Err(err).Str("kind", string(env.cmd.Kind())).Msg("command not applied")
	default:
		result = "error"
		w.log.Error().Err(err).Str("kind", string(env.cmd.Kind())).Msg("command failed")
	}
	metrics.WorkerCommands.WithLabelValues(string(env.cmd.Kind()), result).Inc()

	if env.reply != nil {
		env.reply <- err
	}
}

func (w *Worker) savePost(ctx context.Context, cmd SavePost) error {
	post := &models.Post{
		ID:                  cmd.ID,
		Text:                cmd.Text,
		Status:              models.StatusPending,
		Source:              cmd.Source,
		URL:                 cmd.URL,
		ModerationChatID:    cmd.ChatID,
		ModerationMessageID: cmd.MessageID,
		CreatedAt:           time.Now().UTC(),
	}

	if len(cmd.Image) > 0 {
		ref, err := w.blobs.Put(ctx, storage.ImageKey(cmd.ID), cmd.Image)
		if err != nil {
			// Keep the post; approval publishes it as text.
			w.log.Warn().Err(err).Str("post_id", cmd.ID).Msg("failed to store image, saving post without it")
		} else {
			post.ImageRef = &ref
		}
	}

	if err := w.posts.Create(ctx, post); err != nil {
		if post.ImageRef != nil {
			if derr := w.blobs.Delete(ctx, *post.ImageRef); derr != nil {
				w.log.Warn().Err(derr).Str("ref", *post.ImageRef).Msg("failed to remove orphan image")
			}
		}
		return err
	}

	w.log.Info().Str("post_id", cmd.ID).Str("url", cmd.URL).Msg("post saved")
	return nil
}

func (w *Worker) updateStatus(ctx context.Context, cmd UpdateStatus) error {
	if err := w.posts.UpdateStatus(ctx, cmd.ID, cmd.Status); err != nil {
		return err
	}
	w.log.Info().Str("post_id", cmd.ID).Str("status", string(cmd.Status)).Msg("post status updated")
	return nil
}

// markSeen fails with storage.ErrAlreadySeen when another claim got there first.
func (w *Worker) markSeen(ctx context.Context, cmd MarkSeen) error {
	inserted, err := w.ledger.MarkSeen(ctx, cmd.URL)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("%s: %w", cmd.URL, storage.ErrAlreadySeen)
	}
	return nil
}

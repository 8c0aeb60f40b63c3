package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/receipt-ledger/internal/expense"
)

// cleanupTimeout bounds the compensating delete of an orphaned upload.
const cleanupTimeout = 10 * time.Second

// Remote is the set of remote operations the pipeline performs.
type Remote interface {
	StoreImage(ctx context.Context, userID, imageData, fileName string) (string, error)
	ExtractData(ctx context.Context, userID, storageKey string) (*expense.Draft, error)
	SaveExpense(ctx context.Context, e expense.Expense) (expense.Expense, error)
	DeleteImage(ctx context.Context, userID, storageKey string) error
}

// Pipeline drives one receipt at a time through upload, extraction, review and commit.
// Calls made while a remote call is in flight fail with ErrIllegalTransition.
type Pipeline struct {
	remote Remote
	userID string

	mu    sync.Mutex
	state UploadState
}

// NewPipeline creates an idle pipeline for userID.
func NewPipeline(remote Remote, userID string) *Pipeline {
	return &Pipeline{remote: remote, userID: userID}
}

// State returns a snapshot of the upload state.
func (p *Pipeline) State() UploadState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) apply(ev Event) (Effect, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, eff, err := Transition(p.state, ev)
	if err != nil {
		return nil, err
	}
	p.state = next
	return eff, nil
}

// BeginUpload reads the image, stores it and runs extraction.
// On success the pipeline is Reviewing and the extracted draft is returned.
func (p *Pipeline) BeginUpload(ctx context.Context, r io.Reader, fileName string) (*expense.Draft, error) {
	payload, err := encodeImage(r)
	if err != nil {
		return nil, err
	}

	eff, err := p.apply(UploadRequested{Payload: payload, FileName: fileName})
	if err != nil {
		return nil, err
	}

	slog.Info("Uploading receipt", "file", fileName, "user", p.userID)
	if _, err := p.drive(ctx, eff); err != nil {
		return nil, err
	}
	return p.State().ExtractedData, nil
}

// Cancel abandons the draft under review. Nothing remote is touched.
func (p *Pipeline) Cancel() error {
	_, err := p.apply(ReviewCancelled{})
	return err
}

// Commit merges edits over the extracted draft and saves the result.
// On failure the pipeline stays in Reviewing so the caller can retry.
func (p *Pipeline) Commit(ctx context.Context, edits expense.Draft) (expense.Expense, error) {
	eff, err := p.apply(CommitRequested{UserID: p.userID, Edits: edits})
	if err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			return expense.Expense{}, err
		}
		return expense.Expense{}, &CommitError{Err: err}
	}

	ev, err := p.drive(ctx, eff)
	if err != nil {
		return expense.Expense{}, err
	}
	saved, ok := ev.(ExpenseSaved)
	if !ok {
		return expense.Expense{}, fmt.Errorf("unexpected final event %T", ev)
	}
	slog.Info("Saved expense", "id", saved.Expense.ID, "user", p.userID)
	return saved.Expense, nil
}

// drive performs effects until the machine asks for none and returns the last event.
// The first remote failure is returned after the machine has settled.
func (p *Pipeline) drive(ctx context.Context, eff Effect) (Event, error) {
	var (
		last    Event
		failure error
	)
	for eff != nil {
		if del, ok := eff.(DeleteImage); ok {
			p.discard(ctx, del.StorageKey)
			break
		}

		ev, err := p.perform(ctx, eff)
		if err != nil && failure == nil {
			failure = err
		}
		last = ev

		eff, err = p.apply(ev)
		if err != nil {
			return last, err
		}
	}
	return last, failure
}

func (p *Pipeline) perform(ctx context.Context, eff Effect) (Event, error) {
	switch e := eff.(type) {
	case StoreImage:
		key, err := p.remote.StoreImage(ctx, p.userID, e.Payload, e.FileName)
		if err != nil {
			return StageFailed{}, &ExtractionError{Stage: StageStore, Err: err}
		}
		return ImageStored{StorageKey: key}, nil

	case ExtractData:
		draft, err := p.remote.ExtractData(ctx, p.userID, e.StorageKey)
		if err != nil {
			return StageFailed{}, &ExtractionError{Stage: StageExtract, Err: err}
		}
		return DataExtracted{Draft: draft}, nil

	case SaveExpense:
		saved, err := p.remote.SaveExpense(ctx, e.Expense)
		if err != nil {
			return StageFailed{}, &CommitError{Err: err}
		}
		return ExpenseSaved{Expense: saved}, nil
	}
	return StageFailed{}, fmt.Errorf("unknown effect %T", eff)
}

// discard removes an orphaned upload. It runs even when ctx is already done,
// bounded by cleanupTimeout. Failures are logged only.
func (p *Pipeline) discard(ctx context.Context, storageKey string) {
	if storageKey == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := p.remote.DeleteImage(ctx, p.userID, storageKey); err != nil {
		slog.Warn("Failed to delete orphaned upload", "key", storageKey, "error", err)
	}
}

func encodeImage(r io.Reader) (string, error) {
	if r == nil {
		return "", &EncodingError{Err: errEmptyImage}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", &EncodingError{Err: err}
	}
	if len(data) == 0 {
		return "", &EncodingError{Err: errEmptyImage}
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// SaveManual saves an expense entered without a receipt. A missing amount is saved as zero.
func SaveManual(ctx context.Context, remote Remote, userID string, draft expense.Draft) (expense.Expense, error) {
	exp, err := draft.ToExpense(userID, "")
	if err != nil {
		return expense.Expense{}, &CommitError{Err: err}
	}
	saved, err := remote.SaveExpense(ctx, exp)
	if err != nil {
		return expense.Expense{}, &CommitError{Err: err}
	}
	return saved, nil
}

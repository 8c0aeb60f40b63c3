package ingest

import (
	"fmt"

	"github.com/zombor/receipt-ledger/internal/expense"
)

// Phase is a named state of the ingestion state machine.
type Phase int

const (
	Idle Phase = iota
	Uploading
	Processing
	Reviewing
	Committing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case Processing:
		return "processing"
	case Reviewing:
		return "reviewing"
	case Committing:
		return "committing"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// UploadState is the process-local state of one ingestion attempt.
type UploadState struct {
	Phase         Phase
	IsUploading   bool
	IsProcessing  bool
	ExtractedData *expense.Draft
	StorageKey    string
}

// Event is an input to Transition.
type Event interface{ isEvent() }

type (
	// UploadRequested starts an ingestion with a base64 image.
	UploadRequested struct {
		Payload  string
		FileName string
	}
	// ImageStored reports the storage key of the uploaded image.
	ImageStored struct{ StorageKey string }
	// DataExtracted carries the extraction result.
	DataExtracted struct{ Draft *expense.Draft }
	// StageFailed reports that the in-flight remote call failed.
	StageFailed struct{}
	// ReviewCancelled abandons the draft.
	ReviewCancelled struct{}
	// CommitRequested asks to save the draft with edits laid over it.
	CommitRequested struct {
		UserID string
		Edits  expense.Draft
	}
	// ExpenseSaved carries the record returned by the save call.
	ExpenseSaved struct{ Expense expense.Expense }
)

func (UploadRequested) isEvent() {}
func (ImageStored) isEvent()     {}
func (DataExtracted) isEvent()   {}
func (StageFailed) isEvent()     {}
func (ReviewCancelled) isEvent() {}
func (CommitRequested) isEvent() {}
func (ExpenseSaved) isEvent()    {}

// Effect is a remote call requested by Transition. A nil Effect means nothing to do.
type Effect interface{ isEffect() }

type (
	StoreImage struct {
		Payload  string
		FileName string
	}
	ExtractData struct{ StorageKey string }
	SaveExpense struct{ Expense expense.Expense }
	// DeleteImage removes an upload left behind by a failed extraction.
	DeleteImage struct{ StorageKey string }
)

func (StoreImage) isEffect()  {}
func (ExtractData) isEffect() {}
func (SaveExpense) isEffect() {}
func (DeleteImage) isEffect() {}

// Transition returns the state that follows s on ev and the effect to perform.
// Illegal combinations return s unchanged with an error wrapping ErrIllegalTransition.
func Transition(s UploadState, ev Event) (UploadState, Effect, error) {
	switch s.Phase {
	case Idle:
		if e, ok := ev.(UploadRequested); ok {
			return UploadState{Phase: Uploading, IsUploading: true}, StoreImage{Payload: e.Payload, FileName: e.FileName}, nil
		}

	case Uploading:
		switch e := ev.(type) {
		case ImageStored:
			next := UploadState{Phase: Processing, IsProcessing: true, StorageKey: e.StorageKey}
			return next, ExtractData{StorageKey: e.StorageKey}, nil
		case StageFailed:
			return UploadState{}, nil, nil
		}

	case Processing:
		switch e := ev.(type) {
		case DataExtracted:
			draft := e.Draft
			if draft == nil {
				draft = &expense.Draft{}
			}
			return UploadState{Phase: Reviewing, ExtractedData: draft, StorageKey: s.StorageKey}, nil, nil
		case StageFailed:
			return UploadState{}, DeleteImage{StorageKey: s.StorageKey}, nil
		}

	case Reviewing:
		switch e := ev.(type) {
		case ReviewCancelled:
			return UploadState{}, nil, nil
		case CommitRequested:
			var base expense.Draft
			if s.ExtractedData != nil {
				base = *s.ExtractedData
			}
			exp, err := base.Merge(e.Edits).ToExpense(e.UserID, s.StorageKey)
			if err != nil {
				return s, nil, err
			}
			next := s
			next.Phase = Committing
			return next, SaveExpense{Expense: exp}, nil
		}

	case Committing:
		switch ev.(type) {
		case ExpenseSaved:
			return UploadState{}, nil, nil
		case StageFailed:
			next := s
			next.Phase = Reviewing
			return next, nil, nil
		}
	}

	return s, nil, fmt.Errorf("%w: %T while %s", ErrIllegalTransition, ev, s.Phase)
}

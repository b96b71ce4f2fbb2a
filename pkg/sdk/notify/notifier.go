// Package notify surfaces execution progress to the caller and posts
// best-effort ledger records after successful submissions.
package notify

import (
	"context"

	"github.com/Tumo-Markets/Tumo-MVP/pkg/logger"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/backend"
	"github.com/Tumo-Markets/Tumo-MVP/pkg/sdk/sponsor"
)

// Phase of a wrapped operation as observed by the user.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Status is one progress update. Err is set only for PhaseError.
type Status struct {
	Phase   Phase
	Message string
	Err     error
}

// StatusFunc receives progress updates. Called loading first, then exactly
// one of success or error.
type StatusFunc func(Status)

// Notifier wraps executions with observable phases and writes the ledger
// side-channel.
type Notifier struct {
	backend  *backend.Client
	onStatus StatusFunc
}

// New creates a notifier. onStatus may be nil.
func New(backendClient *backend.Client, onStatus StatusFunc) *Notifier {
	return &Notifier{backend: backendClient, onStatus: onStatus}
}

func (n *Notifier) emit(s Status) {
	if n.onStatus != nil {
		n.onStatus(s)
	}
}

// RecordKind selects which ledger endpoint receives the side record.
type RecordKind int

const (
	RecordNone RecordKind = iota
	RecordOpen
	RecordClose
)

// Execute runs op with loading/success/error phases. After success it posts
// the position record (when kind is not RecordNone) with the transaction
// digest filled in. The ledger post is isolated: its failure is logged and
// never masks a successful on-chain result.
func (n *Notifier) Execute(ctx context.Context, op func(context.Context) (*sponsor.Result, error), kind RecordKind, record backend.PositionRecord) (*sponsor.Result, error) {
	n.emit(Status{Phase: PhaseLoading, Message: "Executing..."})

	res, err := op(ctx)
	if err != nil {
		n.emit(Status{Phase: PhaseError, Message: err.Error(), Err: err})
		return nil, err
	}

	n.emit(Status{Phase: PhaseSuccess, Message: "Transaction executed: " + res.Digest})

	if kind != RecordNone {
		record.TxHash = res.Digest
		var recErr error
		switch kind {
		case RecordOpen:
			recErr = n.backend.RecordOpenPosition(ctx, record)
		case RecordClose:
			recErr = n.backend.RecordClosePosition(ctx, record)
		}
		if recErr != nil {
			logger.WithField("tx", res.Digest).Warnf("position ledger record failed: %v", recErr)
		}
	}
	return res, nil
}

package publish

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"netsentinel/pkg/model"
)

// Publisher forwards persisted samples to an outside consumer. Failures are
// reported to the caller but never retried.
type Publisher interface {
	Publish(ctx context.Context, s model.Sample) error
	Close() error
}

// Envelope is the wire format shared by every sink.
type Envelope struct {
	ID      string       `json:"id"`
	Type    string       `json:"type"`
	AgentID string       `json:"agentId"`
	SentAt  time.Time    `json:"sentAt"`
	Sample  model.Sample `json:"sample"`
}

const envelopeType = "sample"

func newEnvelope(agentID string, s model.Sample) Envelope {
	return Envelope{
		ID:      uuid.NewString(),
		Type:    envelopeType,
		AgentID: agentID,
		SentAt:  time.Now().UTC(),
		Sample:  s,
	}
}

func encode(agentID string, s model.Sample) ([]byte, error) {
	return sonic.Marshal(newEnvelope(agentID, s))
}

// Decode parses an envelope produced by any sink.
func Decode(b []byte) (Envelope, error) {
	var e Envelope
	err := sonic.Unmarshal(b, &e)
	return e, err
}

// Multi fans a sample out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, s model.Sample) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards samples.
type Nop struct{}

func (Nop) Publish(context.Context, model.Sample) error { return nil }
func (Nop) Close() error                                { return nil }

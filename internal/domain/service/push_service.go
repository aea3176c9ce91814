package service

import (
	"context"

	"pushrelay/internal/domain/entity"
)

// PushDispatcher delivers one push message to the gateway. A gateway
// rejection is a failed outcome with nil error; an error is returned only
// when no attempt could be made (credential failure, transport failure).
// No retry at this layer; redelivery is the event source's responsibility.
type PushDispatcher interface {
	Dispatch(ctx context.Context, token, title, body, category, recipientID string) (*entity.PushOutcome, error)
}

// Package notify delivers issued secrets to users out-of-band. Implementations
// satisfy credential.Dispatcher and must never log or re-display the plaintext.
package notify

import (
	"context"
	"log"

	"zetsuserv/internal/credential"
)

// Console is the dispatcher used when no mail API is configured (dev mode).
// It logs that a delivery happened but not the secret itself; dev retrieval of
// plaintext codes goes through the devcode store instead.
type Console struct{}

// Send logs the delivery without the plaintext.
func (Console) Send(ctx context.Context, destination, plaintext string, kind credential.Kind) error {
	log.Printf("notify: console mode, %s for %s not delivered", kind, destination)
	return nil
}

package llm

import (
	"context"
	"fmt"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
)

//go:generate mockgen -destination=mocks/mock_contracts.go -source=contracts.go Completer

// Completer is the remote model: one blocking prompt/response round trip.
// Failures wrap one of the provider errors below.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider failures. All of them satisfy errors.Is(err, common.ErrProvider).
var (
	ErrTimeout     = fmt.Errorf("%w: timeout", common.ErrProvider)
	ErrAuth        = fmt.Errorf("%w: authentication failed", common.ErrProvider)
	ErrRateLimited = fmt.Errorf("%w: rate limited", common.ErrProvider)
	ErrTransport   = fmt.Errorf("%w: transport failure", common.ErrProvider)
)

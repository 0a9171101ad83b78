// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package pipeline

import (
	"time"

	"github.com/pkg/errors"

	"github.com/daognosis/govgate/llm"
)

const (
	maxAttempts    = 3
	initialBackoff = time.Second
)

// callWithRetry runs fn up to maxAttempts times, retrying only overloaded
// responses with exponential backoff (1s, 2s). Any other error is terminal
// on the first occurrence.
func (p *Pipeline) callWithRetry(name string, fn func() (string, error)) (string, error) {
	backoff := initialBackoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := fn()
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, llm.ErrOverloaded) {
			return "", err
		}
		lastErr = err

		if attempt < maxAttempts {
			p.log.WithError(err).WithField("step", name).Warnf("LLM overloaded, retrying in %s", backoff)
			p.metrics.ObserveLLMRetry(name)
			p.sleep(backoff)
			backoff *= 2
		}
	}

	return "", errors.Wrapf(lastErr, "%s: gave up after %d attempts", name, maxAttempts)
}

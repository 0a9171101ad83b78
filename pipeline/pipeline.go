// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package pipeline

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daognosis/govgate/llm"
	"github.com/daognosis/govgate/metrics"
)

// Pipeline runs the filter and analyze steps against a language model.
// Both steps fail open: an exhausted retry or an unparseable response
// degrades to the unfiltered data or a null answer, never to a user-facing
// error.
type Pipeline struct {
	log     *logrus.Logger
	metrics metrics.Metrics
	model   llm.LanguageModel

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(time.Duration)
}

func New(log *logrus.Logger, metricsService metrics.Metrics, model llm.LanguageModel) *Pipeline {
	return &Pipeline{
		log:     log,
		metrics: metricsService,
		model:   model,
		sleep:   time.Sleep,
	}
}

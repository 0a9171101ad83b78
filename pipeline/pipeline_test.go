// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package pipeline

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daognosis/govgate/llm"
	"github.com/daognosis/govgate/metrics"
)

// stubModel scripts the responses of the language model call by call.
type stubModel struct {
	responses []string
	errs      []error
	calls     int
	requests  []llm.CompletionRequest
}

func (s *stubModel) next() (string, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", nil
}

func (s *stubModel) ChatCompletion(request llm.CompletionRequest, opts ...llm.LanguageModelOption) (*llm.TextStreamResult, error) {
	s.requests = append(s.requests, request)
	text, err := s.next()
	if err != nil {
		return nil, err
	}
	return llm.NewStreamFromString(text), nil
}

func (s *stubModel) ChatCompletionNoStream(request llm.CompletionRequest, opts ...llm.LanguageModelOption) (string, error) {
	s.requests = append(s.requests, request)
	return s.next()
}

// testPipeline records backoff sleeps instead of waiting them out.
func testPipeline(model llm.LanguageModel) (*Pipeline, *[]time.Duration) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	delays := &[]time.Duration{}
	p := New(log, metrics.NewNoopMetrics(), model)
	p.sleep = func(d time.Duration) {
		*delays = append(*delays, d)
	}
	return p, delays
}

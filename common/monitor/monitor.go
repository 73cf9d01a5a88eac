// Copyright 2024 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package monitor

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/gorse-io/deepctr"

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusFailed   Status = "Failed"
)

var (
	progressMu     sync.Mutex
	progressWriter io.Writer
)

// SetProgressWriter enables terminal progress bars on w. A nil writer
// disables them.
func SetProgressWriter(w io.Writer) {
	progressMu.Lock()
	defer progressMu.Unlock()
	progressWriter = w
}

func newProgressBar(name string, total int) *progressbar.ProgressBar {
	progressMu.Lock()
	defer progressMu.Unlock()
	if progressWriter == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(progressWriter),
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish())
}

// Tracer keeps the root spans of a process.
type Tracer struct {
	name  string
	spans sync.Map
}

func NewTracer(name string) *Tracer {
	return &Tracer{name: name}
}

// Start creates a root span.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	ctx, span := newSpan(ctx, t.name, name, total)
	t.spans.Store(name, span)
	return ctx, span
}

// List returns the progress of root spans ordered by start time.
func (t *Tracer) List() []Progress {
	var progress []Progress
	t.spans.Range(func(_, value any) bool {
		progress = append(progress, value.(*Span).Progress())
		return true
	})
	sort.Slice(progress, func(i, j int) bool {
		return progress[i].StartTime.Before(progress[j].StartTime)
	})
	return progress
}

// Span tracks the progress of a task. It is mirrored to an OpenTelemetry span
// and to a progress bar when one is enabled.
type Span struct {
	mu       sync.Mutex
	tracer   string
	name     string
	status   Status
	total    int
	count    int
	err      error
	start    time.Time
	finish   time.Time
	children []*Span
	otelSpan trace.Span
	bar      *progressbar.ProgressBar
}

func newSpan(ctx context.Context, tracer, name string, total int) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, otelSpan := otel.Tracer(instrumentationName).Start(ctx, name,
		trace.WithAttributes(attribute.Int("total", total)))
	span := &Span{
		tracer:   tracer,
		name:     name,
		status:   StatusRunning,
		total:    total,
		start:    time.Now(),
		otelSpan: otelSpan,
		bar:      newProgressBar(name, total),
	}
	return context.WithValue(ctx, spanKeyName, span), span
}

// Start creates a span under the span carried by ctx, or a detached span if
// ctx carries none.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	var parent *Span
	if ctx != nil {
		parent, _ = ctx.Value(spanKeyName).(*Span)
	}
	tracer := ""
	if parent != nil {
		tracer = parent.tracer
	}
	ctx, span := newSpan(ctx, tracer, name, total)
	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	}
	return ctx, span
}

func (s *Span) Add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += n
	if s.bar != nil {
		_ = s.bar.Add(n)
	}
}

func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning {
		s.status = StatusComplete
		s.count = s.total
	}
	s.finish = time.Now()
	if s.bar != nil {
		_ = s.bar.Finish()
	}
	s.otelSpan.End()
}

func (s *Span) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.err = err
	s.otelSpan.RecordError(err)
	s.otelSpan.SetStatus(codes.Error, err.Error())
}

func (s *Span) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Progress returns a snapshot of the span. The progress of a running child
// is folded into its parent.
func (s *Span) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Progress{
		Tracer:     s.tracer,
		Name:       s.name,
		Status:     s.status,
		Count:      s.count,
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}
	if s.err != nil {
		p.Error = s.err.Error()
	}
	for _, child := range s.children {
		c := child.Progress()
		if c.Status == StatusFailed {
			p.Status = StatusFailed
			p.Error = c.Error
		}
		if c.Status == StatusRunning && c.Total > 0 {
			p.Count = p.Count*c.Total + c.Count
			p.Total = p.Total * c.Total
		}
	}
	return p
}

type Progress struct {
	Tracer     string
	Name       string
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
}

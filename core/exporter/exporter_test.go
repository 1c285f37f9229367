package exporter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/artpar/modforge/core/compiler"
	"github.com/artpar/modforge/core/registry"
	"github.com/artpar/modforge/core/schema"
)

// recordingExporter remembers every run it observes.
type recordingExporter struct {
	name string
	runs []error
}

func (e *recordingExporter) Name() string { return e.name }

func (e *recordingExporter) ObserveCompile(_ compiler.Stats, err error) {
	e.runs = append(e.runs, err)
}

type pullExporter struct {
	recordingExporter
}

func (e *pullExporter) Handler() http.Handler { return http.NotFoundHandler() }

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"shape", &schema.ShapeViolation{Module: "post", Path: "title", Reason: "unknown type"}, KindShape},
		{"joined shape", errors.Join(&schema.ShapeViolation{Module: "a"}, &schema.ShapeViolation{Module: "b"}), KindShape},
		{"ambiguous enum", &compiler.AmbiguousEnumName{Name: "Statuses"}, KindAmbiguousEnum},
		{"wrapped auth", fmt.Errorf("compile: %w", &compiler.UnresolvedAuthModule{Modules: []string{"a", "b"}}), KindAuthModule},
		{"conflict", &registry.ConflictError{Conflicts: []registry.Conflict{{Kind: "collection"}}}, KindConflict},
		{"canceled", context.Canceled, KindCanceled},
		{"deadline", fmt.Errorf("compile: %w", context.DeadlineExceeded), KindCanceled},
		{"other", errors.New("boom"), KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorKind(tt.err); got != tt.want {
				t.Errorf("ErrorKind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := &recordingExporter{name: "b-recorder"}
	b := &pullExporter{recordingExporter{name: "a-pull"}}
	r.Register(a)
	r.Register(b)

	all := r.All()
	if len(all) != 2 || all[0].Name() != "a-pull" || all[1].Name() != "b-recorder" {
		t.Fatalf("All() not sorted by name: %v", all)
	}

	if _, ok := r.Get("b-recorder"); !ok {
		t.Error("Get should find registered exporter")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get should not find unknown exporter")
	}

	pulls := r.PullExporters()
	if len(pulls) != 1 || pulls[0].Name() != "a-pull" {
		t.Errorf("PullExporters() = %v, want [a-pull]", pulls)
	}
}

func TestRegistry_ObserveCompile(t *testing.T) {
	r := NewRegistry()
	a := &recordingExporter{name: "a"}
	b := &recordingExporter{name: "b"}
	r.Register(a)
	r.Register(b)

	boom := errors.New("boom")
	r.ObserveCompile(compiler.Stats{Modules: 1, Duration: time.Millisecond}, nil)
	r.ObserveCompile(compiler.Stats{}, boom)

	for _, exp := range []*recordingExporter{a, b} {
		if len(exp.runs) != 2 {
			t.Fatalf("%s observed %d runs, want 2", exp.name, len(exp.runs))
		}
		if exp.runs[0] != nil || exp.runs[1] != boom {
			t.Errorf("%s runs = %v", exp.name, exp.runs)
		}
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	first := &recordingExporter{name: "x"}
	second := &recordingExporter{name: "x"}
	r.Register(first)
	r.Register(second)

	r.ObserveCompile(compiler.Stats{}, nil)
	if len(first.runs) != 0 || len(second.runs) != 1 {
		t.Errorf("first = %d runs, second = %d runs, want 0 and 1", len(first.runs), len(second.runs))
	}
}

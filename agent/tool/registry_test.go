package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
)

func okOp(name string, mutating bool) Operation {
	return Operation{
		Spec:     contractx.ToolSpec{Name: name, Description: name},
		Mutating: mutating,
		Run: func(ctx context.Context, tc contractx.ToolContext, input json.RawMessage) (string, error) {
			return "hecho", nil
		},
	}
}

func TestRegistryRejectsInvalidOps(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(Operation{Run: okOp("x", false).Run}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("nameless op must be rejected, got %v", err)
	}
	if err := r.Register(Operation{Spec: contractx.ToolSpec{Name: "x"}}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("handlerless op must be rejected, got %v", err)
	}

	r.MustRegister(okOp("x", false))
	if err := r.Register(okOp("x", false)); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("duplicate name must be rejected, got %v", err)
	}
}

func TestExecuteUnknownToolIsErrorResult(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	res := r.Execute(context.Background(), contractx.ToolContext{}, contractx.ToolCall{
		ID: "t1", Name: "herramienta_fantasma",
	})
	if !res.IsError {
		t.Fatal("unknown tool must produce an error result")
	}
	if res.CallID != "t1" {
		t.Fatalf("result must carry the call id, got %q", res.CallID)
	}
	if !strings.Contains(res.Content, "herramienta desconocida") {
		t.Fatalf("unexpected content %q", res.Content)
	}
}

func TestExecuteHandlerErrorIsErrorResult(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(Operation{
		Spec: contractx.ToolSpec{Name: "fallar"},
		Run: func(ctx context.Context, tc contractx.ToolContext, input json.RawMessage) (string, error) {
			return "", errors.New("cliente no encontrado")
		},
	})

	res := r.Execute(context.Background(), contractx.ToolContext{}, contractx.ToolCall{ID: "t2", Name: "fallar"})
	if !res.IsError || res.Content != "cliente no encontrado" {
		t.Fatalf("handler error must travel as data, got %+v", res)
	}
}

func TestSpecsExcludeMutatingOps(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(okOp("buscar_cliente", false))
	r.MustRegister(okOp("registrar_venta", true))
	r.MustRegister(okOp("calcular", false))

	specs := r.Specs()
	if len(specs) != 2 {
		t.Fatalf("expected 2 read-only specs, got %d", len(specs))
	}
	if specs[0].Name != "buscar_cliente" || specs[1].Name != "calcular" {
		t.Fatalf("specs must keep registration order, got %+v", specs)
	}

	vocab := r.Vocabulary()
	if len(vocab) != 3 {
		t.Fatalf("vocabulary must include mutating names, got %v", vocab)
	}
}

func TestBusinessRegistryCatalog(t *testing.T) {
	t.Parallel()

	r := NewBusinessRegistry(nil)

	wantVisible := map[string]bool{
		ToolFindCustomer:   true,
		ToolSearchProducts: true,
		ToolOpenTasks:      true,
		ToolCalculate:      true,
	}
	for _, spec := range r.Specs() {
		if !wantVisible[spec.Name] {
			t.Fatalf("mutating tool %q leaked into the catalog", spec.Name)
		}
		delete(wantVisible, spec.Name)
	}
	if len(wantVisible) != 0 {
		t.Fatalf("missing read tools in catalog: %v", wantVisible)
	}

	vocab := r.Vocabulary()
	if len(vocab) != 7 {
		t.Fatalf("expected 7 registered tools, got %v", vocab)
	}
}

func TestBusinessCalculate(t *testing.T) {
	t.Parallel()

	r := NewBusinessRegistry(nil)
	res := r.Execute(context.Background(), contractx.ToolContext{}, contractx.ToolCall{
		ID:    "t1",
		Name:  ToolCalculate,
		Input: json.RawMessage(`{"expression":"19900 * 3"}`),
	})
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}
	if !strings.Contains(res.Content, "59700") {
		t.Fatalf("unexpected content %q", res.Content)
	}
}

package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
	storex "github.com/smate-ai/smate-agent/agent/store"
)

// Tool names. Spanish-facing, matching the market the assistant serves.
const (
	ToolFindCustomer   = "buscar_cliente"
	ToolSearchProducts = "buscar_producto"
	ToolOpenTasks      = "listar_tareas"
	ToolCalculate      = "calcular"
	ToolCreateTask     = "crear_tarea"
	ToolRecordSale     = "registrar_venta"
	ToolAddNote        = "agregar_nota"
)

// NewBusinessRegistry wires the commercial operations into a registry.
func NewBusinessRegistry(biz *storex.Commercial) *Registry {
	r := NewRegistry()

	r.MustRegister(Operation{
		Spec: contractx.ToolSpec{
			Name:        ToolFindCustomer,
			Description: "Busca un cliente por teléfono o nombre.",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{"type": "string", "description": "Teléfono o nombre del cliente"},
			}, "query"),
		},
		Run: func(ctx context.Context, tc contractx.ToolContext, input json.RawMessage) (string, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			cust, err := biz.FindCustomer(ctx, tc.TenantID, in.Query)
			if errors.Is(err, storex.ErrNotFound) {
				return "cliente no encontrado", nil
			}
			if err != nil {
				return "", err
			}
			return marshal(map[string]any{
				"id": cust.ID, "name": cust.Name, "phone": cust.Phone,
			})
		},
	})

	r.MustRegister(Operation{
		Spec: contractx.ToolSpec{
			Name:        ToolSearchProducts,
			Description: "Busca productos con su precio y stock.",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{"type": "string", "description": "Nombre o parte del nombre del producto"},
			}, "query"),
		},
		Run: func(ctx context.Context, tc contractx.ToolContext, input json.RawMessage) (string, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			products, err := biz.SearchProducts(ctx, tc.TenantID, in.Query, 10)
			if err != nil {
				return "", err
			}
			if len(products) == 0 {
				return "sin resultados", nil
			}
			out := make([]map[string]any, 0, len(products))
			for _, p := range products {
				out = append(out, map[string]any{
					"name": p.Name, "unit": p.Unit, "price": p.Price, "stock": p.Stock,
				})
			}
			return marshal(out)
		},
	})

	r.MustRegister(Operation{
		Spec: contractx.ToolSpec{
			Name:        ToolOpenTasks,
			Description: "Lista las tareas pendientes.",
			InputSchema: objectSchema(map[string]any{}),
		},
		Run: func(ctx context.Context, tc contractx.ToolContext, _ json.RawMessage) (string, error) {
			tasks, err := biz.OpenTasks(ctx, tc.TenantID, 20)
			if err != nil {
				return "", err
			}
			if len(tasks) == 0 {
				return "sin tareas pendientes", nil
			}
			out := make([]map[string]any, 0, len(tasks))
			for _, t := range tasks {
				entry := map[string]any{"id": t.ID, "title": t.Title}
				if t.DueAt != nil {
					entry["due_at"] = t.DueAt.Format(time.RFC3339)
				}
				out = append(out, entry)
			}
			return marshal(out)
		},
	})

	r.MustRegister(Operation{
		Spec: contractx.ToolSpec{
			Name:        ToolCalculate,
			Description: "Evalúa una expresión aritmética (precios, totales, conversiones).",
			InputSchema: objectSchema(map[string]any{
				"expression": map[string]any{"type": "string", "description": "Expresión, por ejemplo 2000 * 6.5"},
			}, "expression"),
		},
		Run: func(_ context.Context, _ contractx.ToolContext, input json.RawMessage) (string, error) {
			var in struct {
				Expression string `json:"expression"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			value, err := Evaluate(in.Expression)
			if err != nil {
				return "", err
			}
			return marshal(map[string]any{"expression": in.Expression, "result": value})
		},
	})

	r.MustRegister(Operation{
		Spec: contractx.ToolSpec{
			Name:        ToolCreateTask,
			Description: "Crea una tarea pendiente.",
			InputSchema: objectSchema(map[string]any{
				"title":  map[string]any{"type": "string", "description": "Qué hay que hacer"},
				"due_at": map[string]any{"type": "string", "description": "Fecha límite RFC3339, opcional"},
			}, "title"),
		},
		Mutating: true,
		Run: func(ctx context.Context, tc contractx.ToolContext, input json.RawMessage) (string, error) {
			var in struct {
				Title string `json:"title"`
				DueAt string `json:"due_at"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			var dueAt *time.Time
			if in.DueAt != "" {
				t, err := time.Parse(time.RFC3339, in.DueAt)
				if err != nil {
					return "", fmt.Errorf("invalid due_at: %w", err)
				}
				dueAt = &t
			}
			task, err := biz.CreateTask(ctx, tc.TenantID, in.Title, dueAt)
			if err != nil {
				return "", err
			}
			return marshal(map[string]any{"id": task.ID, "title": task.Title})
		},
	})

	r.MustRegister(Operation{
		Spec: contractx.ToolSpec{
			Name:        ToolRecordSale,
			Description: "Registra una venta cerrada.",
			InputSchema: objectSchema(map[string]any{
				"product":    map[string]any{"type": "string"},
				"quantity":   map[string]any{"type": "number"},
				"unit_price": map[string]any{"type": "number"},
				"customer":   map[string]any{"type": "string", "description": "Teléfono o nombre, opcional"},
			}, "product", "quantity", "unit_price"),
		},
		Mutating: true,
		Run: func(ctx context.Context, tc contractx.ToolContext, input json.RawMessage) (string, error) {
			var in struct {
				Product   string  `json:"product"`
				Quantity  float64 `json:"quantity"`
				UnitPrice float64 `json:"unit_price"`
				Customer  string  `json:"customer"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}

			sale := &storex.Sale{
				TenantID:  tc.TenantID,
				Product:   in.Product,
				Quantity:  in.Quantity,
				UnitPrice: in.UnitPrice,
			}
			if in.Customer != "" {
				if cust, err := biz.FindCustomer(ctx, tc.TenantID, in.Customer); err == nil {
					sale.CustomerID = cust.ID
				}
			}
			recorded, err := biz.RecordSale(ctx, sale)
			if err != nil {
				return "", err
			}
			return marshal(map[string]any{
				"id":    recorded.ID,
				"total": recorded.Quantity * recorded.UnitPrice,
			})
		},
	})

	r.MustRegister(Operation{
		Spec: contractx.ToolSpec{
			Name:        ToolAddNote,
			Description: "Agrega una nota al historial de un cliente.",
			InputSchema: objectSchema(map[string]any{
				"customer": map[string]any{"type": "string", "description": "Teléfono o nombre del cliente"},
				"note":     map[string]any{"type": "string"},
			}, "customer", "note"),
		},
		Mutating: true,
		Run: func(ctx context.Context, tc contractx.ToolContext, input json.RawMessage) (string, error) {
			var in struct {
				Customer string `json:"customer"`
				Note     string `json:"note"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			cust, err := biz.FindCustomer(ctx, tc.TenantID, in.Customer)
			if err != nil {
				return "", err
			}
			note, err := biz.AddNote(ctx, tc.TenantID, cust.ID, in.Note)
			if err != nil {
				return "", err
			}
			return marshal(map[string]any{"id": note.ID})
		},
	})

	return r
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func marshal(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool output: %w", err)
	}
	return string(raw), nil
}

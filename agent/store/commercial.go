package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Commercial record types. These are the black-box records the tool
// operations read and write; the orchestration core never touches them
// directly.

type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:cu"`

	ID        string    `bun:"id,pk"`
	TenantID  string    `bun:"tenant_id,notnull"`
	Phone     string    `bun:"phone"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID       string  `bun:"id,pk"`
	TenantID string  `bun:"tenant_id,notnull"`
	Name     string  `bun:"name,notnull"`
	Unit     string  `bun:"unit"`
	Price    float64 `bun:"price"`
	Stock    float64 `bun:"stock"`
}

type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID        string     `bun:"id,pk"`
	TenantID  string     `bun:"tenant_id,notnull"`
	Title     string     `bun:"title,notnull"`
	DueAt     *time.Time `bun:"due_at"`
	Done      bool       `bun:"done,notnull,default:false"`
	CreatedAt time.Time  `bun:"created_at,notnull"`
}

type Note struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID         string    `bun:"id,pk"`
	TenantID   string    `bun:"tenant_id,notnull"`
	CustomerID string    `bun:"customer_id,notnull"`
	Body       string    `bun:"body,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

type Sale struct {
	bun.BaseModel `bun:"table:sales,alias:s"`

	ID         string    `bun:"id,pk"`
	TenantID   string    `bun:"tenant_id,notnull"`
	CustomerID string    `bun:"customer_id"`
	Product    string    `bun:"product,notnull"`
	Quantity   float64   `bun:"quantity,notnull"`
	UnitPrice  float64   `bun:"unit_price,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

var ErrNotFound = errors.New("record not found")

// Commercial exposes the record operations behind the business tools.
type Commercial struct {
	db  *bun.DB
	now func() time.Time
}

func NewCommercial(db *bun.DB) *Commercial {
	return &Commercial{db: db, now: time.Now}
}

func (c *Commercial) Init(ctx context.Context) error {
	models := []any{
		(*Customer)(nil),
		(*Product)(nil),
		(*Task)(nil),
		(*Note)(nil),
		(*Sale)(nil),
	}
	for _, m := range models {
		if _, err := c.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	return nil
}

// FindCustomer matches by exact phone first, then by name substring.
func (c *Commercial) FindCustomer(ctx context.Context, tenantID, query string) (*Customer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNotFound
	}

	row := new(Customer)
	err := c.db.NewSelect().Model(row).
		Where("tenant_id = ?", tenantID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("phone = ?", query).
				WhereOr("lower(name) LIKE ?", "%"+strings.ToLower(query)+"%")
		}).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select customer: %w", err)
	}
	return row, nil
}

func (c *Commercial) SearchProducts(ctx context.Context, tenantID, query string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []Product
	err := c.db.NewSelect().Model(&rows).
		Where("tenant_id = ?", tenantID).
		Where("lower(name) LIKE ?", "%"+strings.ToLower(strings.TrimSpace(query))+"%").
		OrderExpr("name ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return rows, nil
}

func (c *Commercial) OpenTasks(ctx context.Context, tenantID string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []Task
	err := c.db.NewSelect().Model(&rows).
		Where("tenant_id = ?", tenantID).
		Where("done = FALSE").
		OrderExpr("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select open tasks: %w", err)
	}
	return rows, nil
}

func (c *Commercial) CreateTask(ctx context.Context, tenantID, title string, dueAt *time.Time) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("task title is required")
	}

	row := &Task{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Title:     title,
		DueAt:     dueAt,
		CreatedAt: c.now().UTC(),
	}
	if _, err := c.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return row, nil
}

func (c *Commercial) AddNote(ctx context.Context, tenantID, customerID, body string) (*Note, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errors.New("note body is required")
	}

	row := &Note{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Body:       body,
		CreatedAt:  c.now().UTC(),
	}
	if _, err := c.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return row, nil
}

func (c *Commercial) RecordSale(ctx context.Context, sale *Sale) (*Sale, error) {
	if sale == nil {
		return nil, errors.New("sale is nil")
	}
	if strings.TrimSpace(sale.Product) == "" {
		return nil, errors.New("sale product is required")
	}
	if sale.Quantity <= 0 {
		return nil, errors.New("sale quantity must be positive")
	}

	sale.ID = uuid.NewString()
	sale.CreatedAt = c.now().UTC()
	if _, err := c.db.NewInsert().Model(sale).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert sale: %w", err)
	}
	return sale, nil
}

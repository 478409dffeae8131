// Package store persists conversations, messages, and drafts in Postgres
// via bun. Conversation state and draft status always change together inside
// a transaction, and state flips go through a compare-and-swap so two
// near-simultaneous confirmations cannot both win.
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
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
)

type Config struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// NewDB opens a bun DB over the Postgres wire driver.
func NewDB(cfg Config) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Stores bundles the three persistence contracts over one bun DB.
type Stores struct {
	db  *bun.DB
	now func() time.Time
}

func New(db *bun.DB) *Stores {
	return &Stores{db: db, now: time.Now}
}

var (
	_ contractx.ConversationStore = (*Stores)(nil)
	_ contractx.MessageStore      = (*Stores)(nil)
	_ contractx.DraftStore        = (*Stores)(nil)
)

// Init creates the schema when it does not exist yet.
func (s *Stores) Init(ctx context.Context) error {
	models := []any{
		(*conversationRow)(nil),
		(*messageRow)(nil),
		(*draftRow)(nil),
	}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	return nil
}

/* ----------------------------- conversations ----------------------------- */

func (s *Stores) GetOrCreate(ctx context.Context, correspondentID string) (*contractx.Conversation, error) {
	correspondentID = strings.TrimSpace(correspondentID)
	if correspondentID == "" {
		return nil, fmt.Errorf("%w: correspondent id is empty", contractx.ErrValidation)
	}

	row := new(conversationRow)
	err := s.db.NewSelect().Model(row).
		Where("correspondent_id = ?", correspondentID).
		Scan(ctx)
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("select conversation: %w", err)
	}

	now := s.now().UTC()
	row = &conversationRow{
		ID:              uuid.NewString(),
		CorrespondentID: correspondentID,
		State:           contractx.ConvNormal,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := s.db.NewInsert().Model(row).
		On("CONFLICT (correspondent_id) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	// Re-read so a concurrent insert for the same correspondent resolves to
	// one row.
	row = new(conversationRow)
	if err := s.db.NewSelect().Model(row).
		Where("correspondent_id = ?", correspondentID).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("reload conversation: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Stores) Get(ctx context.Context, id string) (*contractx.Conversation, error) {
	row := new(conversationRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contractx.ErrConvNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Stores) TransitionState(ctx context.Context, id string, from, to contractx.ConvState) (bool, error) {
	return transitionState(ctx, s.db, s.now(), id, from, to)
}

func transitionState(ctx context.Context, db bun.IDB, now time.Time, id string, from, to contractx.ConvState) (bool, error) {
	res, err := db.NewUpdate().Model((*conversationRow)(nil)).
		Set("conv_state = ?", to).
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", id).
		Where("conv_state = ?", from).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("transition conversation state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return affected == 1, nil
}

/* -------------------------------- messages ------------------------------- */

func (s *Stores) Append(ctx context.Context, msg *contractx.Message) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", contractx.ErrValidation)
	}
	row := &messageRow{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
		msg.ID = row.ID
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now().UTC()
		msg.CreatedAt = row.CreatedAt
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Stores) Recent(ctx context.Context, conversationID string, limit int) ([]contractx.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	var rows []messageRow
	err := s.db.NewSelect().Model(&rows).
		Where("conversation_id = ?", conversationID).
		OrderExpr("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select recent messages: %w", err)
	}

	msgs := make([]contractx.Message, 0, len(rows))
	for i := range rows {
		msgs = append(msgs, rows[i].toDomain())
	}
	return msgs, nil
}

/* --------------------------------- drafts -------------------------------- */

func (s *Stores) CreatePending(ctx context.Context, draft *contractx.Draft) error {
	if draft == nil {
		return fmt.Errorf("%w: draft is nil", contractx.ErrValidation)
	}
	if len(draft.Items) == 0 {
		return fmt.Errorf("%w: draft has no items", contractx.ErrValidation)
	}
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = s.now().UTC()
	}
	draft.Status = contractx.DraftPending

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// The CAS doubles as the single-pending-draft guard: it only
		// succeeds while the conversation is still in normal state.
		ok, err := transitionState(ctx, tx, s.now(), draft.ConversationID,
			contractx.ConvNormal, contractx.ConvAwaitingConfirmation)
		if err != nil {
			return err
		}
		if !ok {
			return contractx.ErrDraftExists
		}

		row := &draftRow{
			ID:             draft.ID,
			ConversationID: draft.ConversationID,
			Items:          draft.Items,
			Summary:        draft.Summary,
			Status:         contractx.DraftPending,
			CreatedAt:      draft.CreatedAt,
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert draft: %w", err)
		}
		return nil
	})
}

func (s *Stores) Pending(ctx context.Context, conversationID string) (*contractx.Draft, error) {
	row := new(draftRow)
	err := s.db.NewSelect().Model(row).
		Where("conversation_id = ?", conversationID).
		Where("status = ?", contractx.DraftPending).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contractx.ErrNoPendingDraft
	}
	if err != nil {
		return nil, fmt.Errorf("select pending draft: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Stores) Resolve(ctx context.Context, draftID string, status contractx.DraftStatus) error {
	if status != contractx.DraftConfirmed && status != contractx.DraftDiscarded {
		return fmt.Errorf("%w: invalid terminal draft status %q", contractx.ErrValidation, status)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(draftRow)
		err := tx.NewSelect().Model(row).Where("id = ?", draftID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return contractx.ErrNoPendingDraft
		}
		if err != nil {
			return fmt.Errorf("select draft: %w", err)
		}

		now := s.now().UTC()
		res, err := tx.NewUpdate().Model((*draftRow)(nil)).
			Set("status = ?", status).
			Set("resolved_at = ?", now).
			Where("id = ?", draftID).
			Where("status = ?", contractx.DraftPending).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("resolve draft: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("resolve rows affected: %w", err)
		}
		if affected != 1 {
			return contractx.ErrStateConflict
		}

		ok, err := transitionState(ctx, tx, now, row.ConversationID,
			contractx.ConvAwaitingConfirmation, contractx.ConvNormal)
		if err != nil {
			return err
		}
		if !ok {
			return contractx.ErrStateConflict
		}
		return nil
	})
}

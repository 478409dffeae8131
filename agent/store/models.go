package store

import (
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/smate-ai/smate-agent/agent/contract"
)

type conversationRow struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ID              string              `bun:"id,pk"`
	CorrespondentID string              `bun:"correspondent_id,notnull,unique"`
	State           contractx.ConvState `bun:"conv_state,notnull,default:'normal'"`
	CreatedAt       time.Time           `bun:"created_at,notnull"`
	UpdatedAt       time.Time           `bun:"updated_at,notnull"`
}

type messageRow struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID             string         `bun:"id,pk"`
	ConversationID string         `bun:"conversation_id,notnull"`
	Role           contractx.Role `bun:"role,notnull"`
	Content        string         `bun:"content,notnull"`
	CreatedAt      time.Time      `bun:"created_at,notnull"`
}

type draftRow struct {
	bun.BaseModel `bun:"table:drafts,alias:d"`

	ID             string                `bun:"id,pk"`
	ConversationID string                `bun:"conversation_id,notnull"`
	Items          []contractx.DraftItem `bun:"draft_data,type:jsonb"`
	Summary        string                `bun:"summary_text"`
	Status         contractx.DraftStatus `bun:"status,notnull,default:'pending'"`
	CreatedAt      time.Time             `bun:"created_at,notnull"`
	ResolvedAt     *time.Time            `bun:"resolved_at"`
}

func (r *conversationRow) toDomain() *contractx.Conversation {
	return &contractx.Conversation{
		ID:              r.ID,
		CorrespondentID: r.CorrespondentID,
		State:           r.State,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (r *messageRow) toDomain() contractx.Message {
	return contractx.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Role:           r.Role,
		Content:        r.Content,
		CreatedAt:      r.CreatedAt,
	}
}

func (r *draftRow) toDomain() *contractx.Draft {
	return &contractx.Draft{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Items:          r.Items,
		Summary:        r.Summary,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
		ResolvedAt:     r.ResolvedAt,
	}
}

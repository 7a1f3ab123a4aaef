package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"opinion-engine/internal/logger"
	"opinion-engine/internal/model"
	"opinion-engine/internal/repository"
)

// OwnerRef names the theme or question an operation is addressed to.
type OwnerRef struct {
	Type model.OwnerType
	ID   string
}

func (o OwnerRef) logField() zap.Field {
	if o.Type == model.OwnerQuestion {
		return zap.String(logger.FieldQuestionID, o.ID)
	}
	return zap.String(logger.FieldThemeID, o.ID)
}

func ThemeOwner(id string) OwnerRef    { return OwnerRef{Type: model.OwnerTheme, ID: id} }
func QuestionOwner(id string) OwnerRef { return OwnerRef{Type: model.OwnerQuestion, ID: id} }

// Scope is the (topic, question, item type) partition that bounds every
// search and clustering call. QuestionID is nil for a theme-wide scope.
type Scope struct {
	Owner      OwnerRef
	TopicID    string
	QuestionID *string
	ItemType   model.ItemType
}

// ScopeResolver turns an owner reference into a scope, failing with
// NotFoundError when the owner does not exist.
type ScopeResolver struct {
	themes    *repository.ThemeRepository
	questions *repository.QuestionRepository
}

func NewScopeResolver(themes *repository.ThemeRepository, questions *repository.QuestionRepository) *ScopeResolver {
	return &ScopeResolver{themes: themes, questions: questions}
}

func (r *ScopeResolver) Resolve(ctx context.Context, owner OwnerRef, itemType model.ItemType) (Scope, error) {
	if strings.TrimSpace(owner.ID) == "" {
		return Scope{}, invalidf("id", "%s id is required", owner.Type)
	}

	switch owner.Type {
	case model.OwnerTheme:
		theme, err := r.themes.GetByID(ctx, owner.ID)
		if err != nil {
			return Scope{}, err
		}
		if theme == nil {
			return Scope{}, &NotFoundError{Resource: "theme", ID: owner.ID}
		}
		return Scope{Owner: owner, TopicID: theme.ID, ItemType: itemType}, nil
	case model.OwnerQuestion:
		question, err := r.questions.GetByID(ctx, owner.ID)
		if err != nil {
			return Scope{}, err
		}
		if question == nil {
			return Scope{}, &NotFoundError{Resource: "question", ID: owner.ID}
		}
		qid := question.ID
		return Scope{Owner: owner, TopicID: question.ThemeID, QuestionID: &qid, ItemType: itemType}, nil
	}
	return Scope{}, invalidf("owner", "unknown owner type %q", owner.Type)
}

// Check reports NotFoundError when the owner does not exist.
func (r *ScopeResolver) Check(ctx context.Context, owner OwnerRef) error {
	_, err := r.Resolve(ctx, owner, "")
	return err
}

// parseItemType validates a required item type.
func parseItemType(raw string) (model.ItemType, error) {
	itemType, ok := model.ParseItemType(strings.TrimSpace(raw))
	if !ok {
		return "", invalidf("itemType", "itemType must be 'problem' or 'solution'")
	}
	return itemType, nil
}

// parseItemTypes expands an optional item type; empty means both.
func parseItemTypes(raw string) ([]model.ItemType, error) {
	if strings.TrimSpace(raw) == "" {
		return []model.ItemType{model.ItemTypeProblem, model.ItemTypeSolution}, nil
	}
	itemType, err := parseItemType(raw)
	if err != nil {
		return nil, err
	}
	return []model.ItemType{itemType}, nil
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/policyhub/internal/domain/model"
	"github.com/bigkaa/policyhub/internal/domain/rbac"
	"github.com/bigkaa/policyhub/internal/domain/workflow"
)

func pendingRevision(id, policyID, field, createdBy string, number int) *model.PolicyRevision {
	return &model.PolicyRevision{
		ID:              id,
		PolicyID:        policyID,
		FieldName:       field,
		RevisionNumber:  number,
		OriginalContent: "старый текст",
		ModifiedContent: "новый текст",
		ChangeType:      model.ChangeModification,
		Status:          model.RevisionPending,
		CreatedBy:       createdBy,
	}
}

func TestRevisionListByPolicy(t *testing.T) {
	p := draftPolicy("p1", "alice")
	policies := newFakePolicyRepo(p)
	revisions := newFakeRevisionRepo(
		pendingRevision("r1", "p1", model.FieldName, "alice", 1),
		pendingRevision("r2", "p1", model.FieldPolicyText, "alice", 2),
		pendingRevision("r3", "p1", model.FieldPolicyText, "alice", 3),
		pendingRevision("r4", "other", model.FieldName, "dave", 1),
	)
	svc := NewRevisionService(policies, revisions, testLogger())
	ctx := context.Background()

	all, err := svc.ListByPolicy(ctx, "p1", nil)
	if err != nil {
		t.Fatalf("ListByPolicy() ошибка: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ревизий %d, хотели 3", len(all))
	}
	// Новые первыми
	if all[0].RevisionNumber != 3 {
		t.Errorf("первая ревизия #%d", all[0].RevisionNumber)
	}

	// Фильтр по полю
	textOnly, err := svc.ListByPolicy(ctx, "p1", strPtr(model.FieldPolicyText))
	if err != nil {
		t.Fatalf("ListByPolicy(policy_text) ошибка: %v", err)
	}
	if len(textOnly) != 2 {
		t.Errorf("ревизий policy_text: %d, хотели 2", len(textOnly))
	}

	// Недопустимое имя поля
	if _, err := svc.ListByPolicy(ctx, "p1", strPtr("status")); !errors.Is(err, ErrValidation) {
		t.Errorf("фильтр по status: %v, хотели ErrValidation", err)
	}

	// Несуществующая политика
	if _, err := svc.ListByPolicy(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("несуществующая политика: %v, хотели ErrNotFound", err)
	}
}

func TestRevisionReview(t *testing.T) {
	tests := []struct {
		name     string
		actor    model.Actor
		decision string
		wantErr  error
	}{
		{
			name:     "publish принимает чужую ревизию",
			actor:    model.Actor{ID: "carol", Role: rbac.RolePublish},
			decision: model.RevisionAccepted,
		},
		{
			name:     "publish отклоняет чужую ревизию",
			actor:    model.Actor{ID: "carol", Role: rbac.RolePublish},
			decision: model.RevisionRejected,
		},
		{
			name:     "автор не рецензирует собственную ревизию",
			actor:    model.Actor{ID: "alice", Role: rbac.RolePublish},
			decision: model.RevisionAccepted,
			wantErr:  ErrForbidden,
		},
		{
			name:     "super-admin рецензирует собственную ревизию",
			actor:    model.Actor{ID: "alice", Role: rbac.RoleSuperAdmin},
			decision: model.RevisionAccepted,
		},
		{
			name:     "edit не рецензирует",
			actor:    model.Actor{ID: "eve", Role: rbac.RoleEdit},
			decision: model.RevisionAccepted,
			wantErr:  ErrNotPermitted,
		},
		{
			name:     "недопустимый вердикт",
			actor:    model.Actor{ID: "carol", Role: rbac.RolePublish},
			decision: "maybe",
			wantErr:  ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := draftPolicy("p1", "alice")
			revisions := newFakeRevisionRepo(pendingRevision("r1", "p1", model.FieldPolicyText, "alice", 1))
			svc := NewRevisionService(newFakePolicyRepo(p), revisions, testLogger())

			got, err := svc.Review(context.Background(), tt.actor, "r1", tt.decision, "замечание")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Review() err = %v, хотели %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Review() ошибка: %v", err)
			}
			if got.Status != tt.decision {
				t.Errorf("Status = %q, хотели %q", got.Status, tt.decision)
			}
			if got.ReviewedBy != tt.actor.ID {
				t.Errorf("ReviewedBy = %q", got.ReviewedBy)
			}
			if got.ReviewedAt == nil {
				t.Error("ReviewedAt не установлен")
			}
			if got.ReviewComment != "замечание" {
				t.Errorf("ReviewComment = %q", got.ReviewComment)
			}
		})
	}
}

// Ревизия рецензируется ровно один раз.
func TestRevisionReview_OnlyOnce(t *testing.T) {
	p := draftPolicy("p1", "alice")
	revisions := newFakeRevisionRepo(pendingRevision("r1", "p1", model.FieldPolicyText, "alice", 1))
	svc := NewRevisionService(newFakePolicyRepo(p), revisions, testLogger())
	ctx := context.Background()
	reviewer := model.Actor{ID: "carol", Role: rbac.RolePublish}

	if _, err := svc.Review(ctx, reviewer, "r1", model.RevisionAccepted, ""); err != nil {
		t.Fatalf("первый Review() ошибка: %v", err)
	}
	if _, err := svc.Review(ctx, reviewer, "r1", model.RevisionRejected, ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("повторный Review(): %v, хотели ErrConflict", err)
	}

	// Первый вердикт не перезаписан.
	stored, _ := revisions.GetByID(ctx, "r1")
	if stored.Status != model.RevisionAccepted {
		t.Errorf("Status = %q после повторного вердикта", stored.Status)
	}
}

// Принятие ревизии — след для аудита: содержимое политики не меняется.
func TestRevisionReview_DoesNotApplyContent(t *testing.T) {
	p := draftPolicy("p1", "alice")
	originalText := p.PolicyText
	policies := newFakePolicyRepo(p)

	rev := pendingRevision("r1", "p1", model.FieldPolicyText, "alice", 1)
	rev.ModifiedContent = "совсем другой текст"
	revisions := newFakeRevisionRepo(rev)
	svc := NewRevisionService(policies, revisions, testLogger())

	if _, err := svc.Review(context.Background(),
		model.Actor{ID: "carol", Role: rbac.RolePublish}, "r1", model.RevisionAccepted, ""); err != nil {
		t.Fatalf("Review() ошибка: %v", err)
	}

	stored, _ := policies.GetByID(context.Background(), "p1")
	if stored.PolicyText != originalText {
		t.Errorf("принятие ревизии изменило политику: %q", stored.PolicyText)
	}
	if stored.Status != string(workflow.StatusDraft) {
		t.Errorf("принятие ревизии изменило статус: %q", stored.Status)
	}
}

// Maker/checker действует и по создателю политики: создатель не рецензирует
// ревизии своей политики, даже если ревизию предложил кто-то другой.
func TestRevisionReview_PolicyCreatorCannotReview(t *testing.T) {
	p := draftPolicy("p1", "alice")
	revisions := newFakeRevisionRepo(pendingRevision("r1", "p1", model.FieldPolicyText, "bob", 1))
	svc := NewRevisionService(newFakePolicyRepo(p), revisions, testLogger())
	ctx := context.Background()

	_, err := svc.Review(ctx, model.Actor{ID: "alice", Role: rbac.RolePublish}, "r1", model.RevisionAccepted, "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("создатель политики рецензирует её ревизию: %v, хотели ErrForbidden", err)
	}

	// Вердикт не зафиксирован.
	stored, _ := revisions.GetByID(ctx, "r1")
	if stored.Status != model.RevisionPending {
		t.Errorf("Status = %q, хотели pending", stored.Status)
	}

	// super-admin освобождён и от этого ограничения.
	if _, err := svc.Review(ctx, model.Actor{ID: "alice", Role: rbac.RoleSuperAdmin}, "r1", model.RevisionAccepted, ""); err != nil {
		t.Fatalf("Review() super-admin ошибка: %v", err)
	}
}

func TestRevisionReview_NotFound(t *testing.T) {
	svc := NewRevisionService(newFakePolicyRepo(), newFakeRevisionRepo(), testLogger())
	_, err := svc.Review(context.Background(),
		model.Actor{ID: "carol", Role: rbac.RolePublish}, "missing", model.RevisionAccepted, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

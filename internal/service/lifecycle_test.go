package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/policyhub/internal/domain/model"
	"github.com/bigkaa/policyhub/internal/domain/rbac"
	"github.com/bigkaa/policyhub/internal/domain/workflow"
)

func newLifecycleService(policies *fakePolicyRepo) *LifecycleService {
	txm := &fakeTxManager{policies: policies, revisions: newFakeRevisionRepo()}
	return NewLifecycleService(policies, txm, NewPolicyCache(0, 0), testLogger())
}

func policyInStatus(id, creatorID, status string) *model.Policy {
	p := draftPolicy(id, creatorID)
	p.Status = status
	return p
}

// --- Проверки порядка и классификации ошибок перехода ---

func TestTransition_Checks(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		actor   model.Actor
		target  string
		comment string
		wantErr error
	}{
		{
			name:   "создатель-edit отправляет черновик на рецензию",
			status: string(workflow.StatusDraft),
			actor:  model.Actor{ID: "alice", Role: rbac.RoleEdit},
			target: "under-review",
		},
		{
			name:    "edit не отправляет чужой черновик",
			status:  string(workflow.StatusDraft),
			actor:   model.Actor{ID: "mallory", Role: rbac.RoleEdit},
			target:  "under-review",
			wantErr: ErrNotPermitted,
		},
		{
			name:    "недопустимая пара статусов",
			status:  string(workflow.StatusDraft),
			actor:   model.Actor{ID: "carol", Role: rbac.RolePublish},
			target:  "published",
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "read-only не меняет статусы",
			status:  string(workflow.StatusUnderReview),
			actor:   model.Actor{ID: "bob", Role: rbac.RoleReadOnly},
			target:  "approved",
			wantErr: ErrNotPermitted,
		},
		{
			name:    "создатель не утверждает сам себя",
			status:  string(workflow.StatusUnderReview),
			actor:   model.Actor{ID: "alice", Role: rbac.RolePublish},
			target:  "approved",
			wantErr: ErrForbidden,
		},
		{
			name:   "super-admin утверждает собственную политику",
			status: string(workflow.StatusUnderReview),
			actor:  model.Actor{ID: "alice", Role: rbac.RoleSuperAdmin},
			target: "approved",
		},
		{
			name:    "awaiting-changes без комментария",
			status:  string(workflow.StatusUnderReview),
			actor:   model.Actor{ID: "carol", Role: rbac.RolePublish},
			target:  "awaiting-changes",
			comment: "   ",
			wantErr: ErrValidation,
		},
		{
			name:    "awaiting-changes с комментарием",
			status:  string(workflow.StatusUnderReview),
			actor:   model.Actor{ID: "carol", Role: rbac.RolePublish},
			target:  "awaiting-changes",
			comment: "Уточните раздел 3",
		},
		{
			name:    "возврат на рецензии в черновик — не review-действие",
			status:  string(workflow.StatusUnderReview),
			actor:   model.Actor{ID: "alice", Role: rbac.RolePublish},
			target:  "draft",
			wantErr: nil,
		},
		{
			name:    "неизвестный целевой статус",
			status:  string(workflow.StatusDraft),
			actor:   model.Actor{ID: "carol", Role: rbac.RolePublish},
			target:  "frozen",
			wantErr: ErrValidation,
		},
		{
			name:    "только super-admin архивирует",
			status:  string(workflow.StatusPublished),
			actor:   model.Actor{ID: "carol", Role: rbac.RolePublish},
			target:  "archived",
			wantErr: ErrNotPermitted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Создатель политики во всех случаях — alice.
			p := policyInStatus("p1", "alice", tt.status)
			policies := newFakePolicyRepo(p)
			svc := newLifecycleService(policies)

			got, err := svc.Transition(context.Background(), tt.actor, "p1", tt.target, tt.comment)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Transition() err = %v, хотели %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition() ошибка: %v", err)
			}
			if got.Status != workflow.Canonical(tt.target) {
				t.Errorf("Status = %q, хотели %q", got.Status, tt.target)
			}
		})
	}
}

func TestTransition_NotFound(t *testing.T) {
	svc := newLifecycleService(newFakePolicyRepo())
	_, err := svc.Transition(context.Background(),
		model.Actor{ID: "carol", Role: rbac.RolePublish}, "missing", "under-review", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

// Историческое написание статуса в записи не ломает автомат.
func TestTransition_LegacyUnderReviewSpelling(t *testing.T) {
	p := policyInStatus("p1", "alice", "under review")
	policies := newFakePolicyRepo(p)
	svc := newLifecycleService(policies)

	got, err := svc.Transition(context.Background(),
		model.Actor{ID: "carol", Role: rbac.RolePublish}, "p1", "approved", "")
	if err != nil {
		t.Fatalf("Transition() ошибка: %v", err)
	}
	if got.Status != string(workflow.StatusApproved) {
		t.Errorf("Status = %q", got.Status)
	}
}

// Review-переход фиксирует рецензента и комментарий.
func TestTransition_RecordsReviewer(t *testing.T) {
	p := policyInStatus("p1", "alice", string(workflow.StatusUnderReview))
	policies := newFakePolicyRepo(p)
	svc := newLifecycleService(policies)

	got, err := svc.Transition(context.Background(),
		model.Actor{ID: "carol", Role: rbac.RolePublish}, "p1", "rejected", "Противоречит ТК")
	if err != nil {
		t.Fatalf("Transition() ошибка: %v", err)
	}
	if got.Reviewer != "carol" {
		t.Errorf("Reviewer = %q", got.Reviewer)
	}
	if got.ReviewerComment != "Противоречит ТК" {
		t.Errorf("ReviewerComment = %q", got.ReviewerComment)
	}
}

// --- Публикация с архивацией предшественников ---

func TestPublish_ArchivesPublishedPredecessors(t *testing.T) {
	now := time.Now().UTC()

	// Старая опубликованная версия (корень семейства).
	old := policyInStatus("root", "alice", string(workflow.StatusPublished))
	old.PublishedAt = &now

	// Опубликованная политика другого семейства — её трогать нельзя.
	foreign := policyInStatus("foreign", "dave", string(workflow.StatusPublished))
	foreign.PolicyNumber = "HR-002"

	// Новая версия на рецензии, тот же номер.
	next := policyInStatus("next", "alice", string(workflow.StatusUnderReview))
	rootID := "root"
	next.ParentPolicyID = &rootID

	policies := newFakePolicyRepo(old, foreign, next)
	svc := newLifecycleService(policies)

	got, err := svc.Transition(context.Background(),
		model.Actor{ID: "carol", Role: rbac.RolePublish}, "next", "published", "")
	if err != nil {
		t.Fatalf("Transition() ошибка: %v", err)
	}

	if got.Status != string(workflow.StatusPublished) {
		t.Errorf("Status = %q", got.Status)
	}
	if got.PublishedAt == nil {
		t.Error("PublishedAt не установлен")
	}
	if got.PublisherID != "carol" {
		t.Errorf("PublisherID = %q", got.PublisherID)
	}

	archived, _ := policies.GetByID(context.Background(), "root")
	if archived.Status != string(workflow.StatusArchived) {
		t.Errorf("предшественник в статусе %q, хотели archived", archived.Status)
	}
	if archived.ArchivedAt == nil {
		t.Error("у предшественника не установлен ArchivedAt")
	}
	// PublishedAt предшественника сохраняется для истории.
	if archived.PublishedAt == nil {
		t.Error("у предшественника сброшен PublishedAt")
	}

	untouched, _ := policies.GetByID(context.Background(), "foreign")
	if untouched.Status != string(workflow.StatusPublished) {
		t.Errorf("политика чужого семейства в статусе %q", untouched.Status)
	}

	// В итоге опубликована ровно одна версия номера.
	published, _ := policies.ListPublishedByNumber(context.Background(), "HR-001", "", false)
	if len(published) != 1 || published[0].ID != "next" {
		t.Errorf("опубликованных версий HR-001: %d", len(published))
	}
}

// Ошибка архивации предшественника откатывает публикацию целиком.
func TestPublish_AbortsOnArchivalFailure(t *testing.T) {
	old := policyInStatus("root", "alice", string(workflow.StatusPublished))
	next := policyInStatus("next", "alice", string(workflow.StatusUnderReview))
	rootID := "root"
	next.ParentPolicyID = &rootID

	policies := newFakePolicyRepo(old, next)
	policies.updateErr = errors.New("соединение потеряно")
	svc := newLifecycleService(policies)

	_, err := svc.Transition(context.Background(),
		model.Actor{ID: "carol", Role: rbac.RolePublish}, "next", "published", "")
	if err == nil {
		t.Fatal("ожидали ошибку публикации")
	}

	stored, _ := policies.GetByID(context.Background(), "next")
	if stored.Status != string(workflow.StatusUnderReview) {
		t.Errorf("политика опубликована несмотря на ошибку: %q", stored.Status)
	}
}

// --- Клонирование для обновления ---

func TestCloneForUpdate(t *testing.T) {
	now := time.Now().UTC()
	source := policyInStatus("root", "alice", string(workflow.StatusPublished))
	source.PublishedAt = &now
	source.PublisherID = "carol"

	policies := newFakePolicyRepo(source)
	svc := newLifecycleService(policies)

	// Клонирует publisher, не автор.
	clone, err := svc.Transition(context.Background(),
		model.Actor{ID: "carol", Role: rbac.RolePublish}, "root", "draft", "")
	if err != nil {
		t.Fatalf("Transition() ошибка: %v", err)
	}

	if clone.ID == "root" {
		t.Fatal("вернулся источник вместо клона")
	}
	if clone.Status != string(workflow.StatusDraft) {
		t.Errorf("статус клона %q", clone.Status)
	}
	// creator_id клона — оригинальный автор, не актор.
	if clone.CreatorID != "alice" {
		t.Errorf("CreatorID клона = %q, хотели alice", clone.CreatorID)
	}
	if clone.ParentPolicyID == nil || *clone.ParentPolicyID != "root" {
		t.Errorf("ParentPolicyID клона = %v", clone.ParentPolicyID)
	}
	if clone.PolicyNumber != source.PolicyNumber {
		t.Errorf("PolicyNumber клона = %q", clone.PolicyNumber)
	}
	if clone.PolicyText != source.PolicyText {
		t.Errorf("PolicyText клона = %q", clone.PolicyText)
	}
	if clone.PublishedAt != nil || clone.PublisherID != "" {
		t.Error("клон унаследовал атрибуты публикации")
	}

	// Источник не изменился.
	stored, _ := policies.GetByID(context.Background(), "root")
	if stored.Status != string(workflow.StatusPublished) {
		t.Errorf("источник в статусе %q", stored.Status)
	}
}

// Клон клона укореняется в корне семейства, не в непосредственном предке.
func TestCloneForUpdate_RootsAtFamilyRoot(t *testing.T) {
	rootID := "root"
	root := policyInStatus("root", "alice", string(workflow.StatusArchived))
	v2 := policyInStatus("v2", "alice", string(workflow.StatusPublished))
	v2.ParentPolicyID = &rootID

	policies := newFakePolicyRepo(root, v2)
	svc := newLifecycleService(policies)

	clone, err := svc.CloneForUpdate(context.Background(),
		model.Actor{ID: "carol", Role: rbac.RolePublish}, "v2")
	if err != nil {
		t.Fatalf("CloneForUpdate() ошибка: %v", err)
	}
	if clone.ParentPolicyID == nil || *clone.ParentPolicyID != "root" {
		t.Errorf("ParentPolicyID = %v, хотели root", clone.ParentPolicyID)
	}
	if clone.CreatorID != "alice" {
		t.Errorf("CreatorID = %q", clone.CreatorID)
	}
}

func TestCloneForUpdate_Errors(t *testing.T) {
	draft := policyInStatus("d1", "alice", string(workflow.StatusDraft))
	published := policyInStatus("p1", "alice", string(workflow.StatusPublished))
	policies := newFakePolicyRepo(draft, published)
	svc := newLifecycleService(policies)
	ctx := context.Background()

	if _, err := svc.CloneForUpdate(ctx, model.Actor{ID: "carol", Role: rbac.RolePublish}, "d1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("клонирование черновика: %v, хотели ErrInvalidTransition", err)
	}
	if _, err := svc.CloneForUpdate(ctx, model.Actor{ID: "alice", Role: rbac.RoleEdit}, "p1"); !errors.Is(err, ErrNotPermitted) {
		t.Errorf("клонирование ролью edit: %v, хотели ErrNotPermitted", err)
	}
	if _, err := svc.CloneForUpdate(ctx, model.Actor{ID: "carol", Role: rbac.RolePublish}, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("клонирование несуществующей: %v, хотели ErrNotFound", err)
	}
}

// --- Восстановление из архива ---

func TestTransition_RestoreFromArchive(t *testing.T) {
	now := time.Now().UTC()
	p := policyInStatus("p1", "alice", string(workflow.StatusArchived))
	p.ArchivedAt = &now

	policies := newFakePolicyRepo(p)
	svc := newLifecycleService(policies)
	ctx := context.Background()

	// publish недостаточно для восстановления
	if _, err := svc.Transition(ctx, model.Actor{ID: "carol", Role: rbac.RolePublish}, "p1", "draft", ""); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("восстановление ролью publish: %v", err)
	}

	got, err := svc.Transition(ctx, model.Actor{ID: "admin", Role: rbac.RoleSuperAdmin}, "p1", "draft", "")
	if err != nil {
		t.Fatalf("Transition() ошибка: %v", err)
	}
	if got.Status != string(workflow.StatusDraft) {
		t.Errorf("Status = %q", got.Status)
	}
	if got.ArchivedAt != nil {
		t.Error("ArchivedAt не сброшен при восстановлении")
	}
}

// --- Семейство версий и поиск преемника ---

func TestVersionFamily(t *testing.T) {
	rootID := "root"
	root := policyInStatus("root", "alice", string(workflow.StatusArchived))
	v2 := policyInStatus("v2", "alice", string(workflow.StatusPublished))
	v2.ParentPolicyID = &rootID
	v3 := policyInStatus("v3", "alice", string(workflow.StatusDraft))
	v3.ParentPolicyID = &rootID
	foreign := policyInStatus("foreign", "dave", string(workflow.StatusPublished))
	foreign.PolicyNumber = "HR-002"

	policies := newFakePolicyRepo(root, v2, v3, foreign)
	svc := newLifecycleService(policies)
	ctx := context.Background()

	// Запрос от любого члена семейства возвращает всё семейство.
	for _, id := range []string{"root", "v2", "v3"} {
		family, err := svc.VersionFamily(ctx, id)
		if err != nil {
			t.Fatalf("VersionFamily(%s) ошибка: %v", id, err)
		}
		if len(family) != 3 {
			t.Errorf("VersionFamily(%s): %d версий, хотели 3", id, len(family))
		}
		for _, member := range family {
			if member.ID == "foreign" {
				t.Errorf("VersionFamily(%s) вернул чужую политику", id)
			}
		}
	}
}

func TestFindReplacement(t *testing.T) {
	rootID := "root"
	archivedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	publishedAt := archivedAt.Add(time.Hour)

	root := policyInStatus("root", "alice", string(workflow.StatusArchived))
	root.ArchivedAt = &archivedAt
	v2 := policyInStatus("v2", "alice", string(workflow.StatusPublished))
	v2.ParentPolicyID = &rootID
	v2.PublishedAt = &publishedAt
	orphan := policyInStatus("orphan", "dave", string(workflow.StatusArchived))
	orphan.PolicyNumber = "HR-003"
	orphan.ArchivedAt = &archivedAt

	policies := newFakePolicyRepo(root, v2, orphan)
	svc := newLifecycleService(policies)
	ctx := context.Background()

	got, err := svc.FindReplacement(ctx, "root")
	if err != nil {
		t.Fatalf("FindReplacement() ошибка: %v", err)
	}
	if got.ID != "v2" {
		t.Errorf("преемник = %q, хотели v2", got.ID)
	}

	// У архивной политики без опубликованного преемника — ErrNotFound.
	if _, err := svc.FindReplacement(ctx, "orphan"); !errors.Is(err, ErrNotFound) {
		t.Errorf("преемник сироты: %v, хотели ErrNotFound", err)
	}

	// Для неархивной политики запрос не имеет смысла.
	if _, err := svc.FindReplacement(ctx, "v2"); !errors.Is(err, ErrValidation) {
		t.Errorf("преемник опубликованной: %v, хотели ErrValidation", err)
	}
}

// Исторические данные: в семействе может быть несколько опубликованных
// версий. Преемник — опубликованная ПОСЛЕ архивации, самая ранняя из таких;
// версия, опубликованная до архивации, преемником не считается.
func TestFindReplacement_LegacyMultiplePublished(t *testing.T) {
	rootID := "root"
	archivedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	beforeArchival := archivedAt.Add(-time.Hour)
	afterArchival := archivedAt.Add(time.Hour)
	muchLater := archivedAt.Add(48 * time.Hour)

	root := policyInStatus("root", "alice", string(workflow.StatusArchived))
	root.ArchivedAt = &archivedAt

	stale := policyInStatus("stale", "alice", string(workflow.StatusPublished))
	stale.ParentPolicyID = &rootID
	stale.PublishedAt = &beforeArchival

	v2 := policyInStatus("v2", "alice", string(workflow.StatusPublished))
	v2.ParentPolicyID = &rootID
	v2.PublishedAt = &afterArchival

	v3 := policyInStatus("v3", "alice", string(workflow.StatusPublished))
	v3.ParentPolicyID = &rootID
	v3.PublishedAt = &muchLater

	svc := newLifecycleService(newFakePolicyRepo(root, stale, v2, v3))
	ctx := context.Background()

	got, err := svc.FindReplacement(ctx, "root")
	if err != nil {
		t.Fatalf("FindReplacement() ошибка: %v", err)
	}
	// Самая ранняя публикация после архивации, а не самая свежая.
	if got.ID != "v2" {
		t.Errorf("преемник = %q, хотели v2", got.ID)
	}

	// Если единственная опубликованная версия старше архивации — преемника нет.
	root2ID := "root2"
	root2 := policyInStatus("root2", "alice", string(workflow.StatusArchived))
	root2.PolicyNumber = "HR-002"
	root2.ArchivedAt = &archivedAt
	old2 := policyInStatus("old2", "alice", string(workflow.StatusPublished))
	old2.PolicyNumber = "HR-002"
	old2.ParentPolicyID = &root2ID
	old2.PublishedAt = &beforeArchival

	svc2 := newLifecycleService(newFakePolicyRepo(root2, old2))
	if _, err := svc2.FindReplacement(ctx, "root2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("преемник из прошлого: %v, хотели ErrNotFound", err)
	}
}

package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/service"
)

func newSegmentService() (*service.SegmentService, *MockSegmentRepo, *MockCampaignRepo) {
	segments := NewMockSegmentRepo()
	customers := &MockCustomerRepo{customers: []model.Customer{
		{ID: "cust-a", Name: "Ananya", OwnerID: owner},
		{ID: "cust-b", Name: "Bilal", OwnerID: owner},
	}}
	return &service.SegmentService{
		SegmentRepo:  segments,
		CustomerRepo: customers,
		Log:          zerolog.Nop(),
	}, segments, segments.campaigns
}

func TestSegmentCreate_AddsWelcomeCampaign(t *testing.T) {
	svc, segments, campaigns := newSegmentService()

	seg, err := svc.Create(context.Background(), owner, service.SegmentInput{
		Name:  "Pune shoppers",
		Rules: model.Leaf("city", model.OpEquals, "Pune"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if seg.AudienceSize != 2 || seg.OwnerID != owner || seg.ID == "" {
		t.Errorf("unexpected segment %+v", seg)
	}
	if _, ok := segments.segments[seg.ID]; !ok {
		t.Error("segment not stored")
	}

	list, total, _ := campaigns.List(context.Background(), owner, 0, 10, "")
	if total != 1 {
		t.Fatalf("expected one welcome campaign, got %d", total)
	}
	welcome := list[0]
	if welcome.Name != "Welcome Campaign - Pune shoppers" ||
		welcome.Message != service.WelcomeMessage ||
		welcome.Status != model.CampaignDraft ||
		welcome.SegmentID != seg.ID {
		t.Errorf("unexpected welcome campaign %+v", welcome)
	}
}

func TestSegmentCreate_StoreFailureKeepsNothing(t *testing.T) {
	svc, segments, campaigns := newSegmentService()
	segments.createErr = errors.New("insert campaign: connection reset")

	_, err := svc.Create(context.Background(), owner, service.SegmentInput{
		Name:  "Pune shoppers",
		Rules: model.Leaf("city", model.OpEquals, "Pune"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(segments.segments) != 0 || len(campaigns.campaigns) != 0 {
		t.Errorf("expected nothing stored, got %d segments and %d campaigns", len(segments.segments), len(campaigns.campaigns))
	}
}

func TestSegmentCreate_RejectsInvalidInput(t *testing.T) {
	svc, segments, campaigns := newSegmentService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   service.SegmentInput
	}{
		{"missing name", service.SegmentInput{Rules: model.RuleTree{}}},
		{"unknown field", service.SegmentInput{Name: "x", Rules: model.Leaf("shoeSize", model.OpEquals, "9")}},
		{"bad operator for type", service.SegmentInput{Name: "x", Rules: model.Leaf("visits", model.OpContains, "1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, owner, tt.in); !appErrors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if len(segments.segments) != 0 || len(campaigns.campaigns) != 0 {
		t.Error("invalid input must not create anything")
	}
}

func TestSegmentUpdate_RecomputesAudience(t *testing.T) {
	svc, segments, _ := newSegmentService()
	segments.segments["seg-1"] = &model.Segment{ID: "seg-1", Name: "Old", AudienceSize: 0, OwnerID: owner}

	seg, err := svc.Update(context.Background(), "seg-1", owner, service.SegmentInput{
		Name:  "New",
		Rules: model.Leaf("totalSpent", model.OpGreaterThan, 100.0),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if seg.Name != "New" || seg.AudienceSize != 2 {
		t.Errorf("unexpected segment %+v", seg)
	}
	if segments.segments["seg-1"].AudienceSize != 2 {
		t.Error("update not persisted")
	}
}

func TestSegmentOwnership(t *testing.T) {
	svc, segments, _ := newSegmentService()
	segments.segments["seg-1"] = &model.Segment{ID: "seg-1", Name: "Mine", OwnerID: owner}
	ctx := context.Background()

	if _, err := svc.Get(ctx, "seg-1", "user-2"); !appErrors.IsNotFound(err) {
		t.Errorf("expected not found for other owner, got %v", err)
	}
	if err := svc.Delete(ctx, "seg-1", "user-2"); !appErrors.IsNotFound(err) {
		t.Errorf("expected not found for other owner, got %v", err)
	}
	if err := svc.Delete(ctx, "seg-1", owner); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := segments.segments["seg-1"]; ok {
		t.Error("segment still present")
	}
}

func TestSegmentPreview(t *testing.T) {
	svc, _, _ := newSegmentService()

	n, err := svc.Preview(context.Background(), owner, model.RuleTree{})
	if err != nil || n != 2 {
		t.Errorf("Preview = %d, %v", n, err)
	}

	_, err = svc.Preview(context.Background(), owner, model.Leaf("city", model.OpIn, "Pune"))
	if !appErrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

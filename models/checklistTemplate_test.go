package models_test

import (
	"errors"
	"testing"

	"github.com/cascacheck/cascacheck_backend/models"
	"github.com/cascacheck/cascacheck_backend/utils"
)

func TestChecklistTemplateCatalog(t *testing.T) {
	templates := models.GetChecklistTemplates()
	if len(templates) != 6 {
		t.Fatalf("expected 6 templates; got %d", len(templates))
	}

	wantOrder := []models.ChecklistCategory{
		models.CategoryReposicaoFrenteLoja,
		models.CategoryEstoqueSeco,
		models.CategoryCozinhaCopa,
		models.CategoryBanheiros,
		models.CategoryAreaProducao,
		models.CategoryAreaExterna,
	}
	for i, category := range wantOrder {
		if templates[i].Category != category {
			t.Fatalf("catalog order: position %d = %q; want %q", i, templates[i].Category, category)
		}
		if templates[i].Title == "" {
			t.Fatalf("template %q has no title", category)
		}
		if len(templates[i].Items) == 0 {
			t.Fatalf("template %q has no items", category)
		}
	}
}

func TestGetChecklistTemplate(t *testing.T) {
	template, err := models.GetChecklistTemplate(models.CategoryBanheiros)
	if err != nil {
		t.Fatalf("GetChecklistTemplate: %v", err)
	}
	if template.Title != "Banheiros" {
		t.Fatalf("unexpected title %q", template.Title)
	}

	found := false
	for _, item := range template.Items {
		if item == "Sabonete líquido disponível" {
			found = true
		}
	}
	if !found {
		t.Fatalf("banheiros template is missing the soap item")
	}

	if _, err := models.GetChecklistTemplate("corredores"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected record-not-found for unknown category; got %v", err)
	}
}

func TestChecklistTemplateCopiesAreIsolated(t *testing.T) {
	first, err := models.GetChecklistTemplate(models.CategoryBanheiros)
	if err != nil {
		t.Fatalf("GetChecklistTemplate: %v", err)
	}
	first.Items[0] = "mutated"

	second, err := models.GetChecklistTemplate(models.CategoryBanheiros)
	if err != nil {
		t.Fatalf("GetChecklistTemplate: %v", err)
	}
	if second.Items[0] == "mutated" {
		t.Fatalf("registry must hand out defensive copies")
	}
}

package models

import "github.com/cascacheck/cascacheck_backend/utils"

// ChecklistTemplate is the static catalog entry for one inspection category.
// The registry is immutable; callers always get a defensive copy.
type ChecklistTemplate struct {
	Category ChecklistCategory `json:"category"`
	Title    string            `json:"title"`
	Items    []string          `json:"items"`
}

var checklistTemplates = []ChecklistTemplate{
	{
		Category: CategoryReposicaoFrenteLoja,
		Title:    "Reposição Frente de Loja",
		Items: []string{
			"Bancada limpa e seca",
			"Toalhas descartáveis disponíveis",
			"Copos para água disponíveis",
			"Porta guardanapos limpos e abastecidos",
			"Cardápios limpos",
			"Fachada limpa",
			"Chão limpo",
			"Máquina de cartão funcionando",
		},
	},
	{
		Category: CategoryEstoqueSeco,
		Title:    "Estoque Seco",
		Items: []string{
			"Prateleiras limpas e organizadas",
			"Produtos dentro da validade",
			"Sistema PVPS sendo respeitado",
			"Controle de validade atualizado",
			"Embalagens fechadas e protegidas",
			"Chão limpo e seco",
			"Ausência de materiais estranhos",
		},
	},
	{
		Category: CategoryCozinhaCopa,
		Title:    "Cozinha e Copa",
		Items: []string{
			"Bancadas limpas e organizadas",
			"Utensílios higienizados",
			"Pia limpa",
			"Lixeira com tampa e acionamento por pedal",
			"Geladeira limpa e organizada",
			"Freezer limpo e organizado",
			"Chão limpo e seco",
		},
	},
	{
		Category: CategoryBanheiros,
		Title:    "Banheiros",
		Items: []string{
			"Vaso sanitário limpo",
			"Sabonete líquido disponível",
			"Papel higiênico disponível",
			"Papel toalha disponível",
			"Lixeira com tampa",
			"Chão limpo e seco",
			"Ausência de odores",
		},
	},
	{
		Category: CategoryAreaProducao,
		Title:    "Área de Produção",
		Items: []string{
			"Equipamentos limpos",
			"Superfícies sanitizadas",
			"Colaboradores com uniformes completos",
			"Colaboradores utilizando toucas",
			"Lixeiras com tampa e pedal",
			"Pia para lavagem de mãos abastecida",
			"Produtos separados por categorias",
		},
	},
	{
		Category: CategoryAreaExterna,
		Title:    "Área Externa",
		Items: []string{
			"Calçada limpa",
			"Lixeiras externas vazias",
			"Vidros da fachada limpos",
			"Iluminação funcionando corretamente",
			"Ausência de insetos",
			"Entrada da loja desobstruída",
			"Ausência de odores",
		},
	},
}

func (t ChecklistTemplate) clone() ChecklistTemplate {
	items := make([]string, len(t.Items))
	copy(items, t.Items)
	return ChecklistTemplate{
		Category: t.Category,
		Title:    t.Title,
		Items:    items,
	}
}

// GetChecklistTemplate returns the template for one category.
func GetChecklistTemplate(category ChecklistCategory) (*ChecklistTemplate, error) {
	for _, t := range checklistTemplates {
		if t.Category == category {
			c := t.clone()
			return &c, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

// GetChecklistTemplates returns all templates in catalog order.
func GetChecklistTemplates() []ChecklistTemplate {
	results := make([]ChecklistTemplate, 0, len(checklistTemplates))
	for _, t := range checklistTemplates {
		results = append(results, t.clone())
	}
	return results
}

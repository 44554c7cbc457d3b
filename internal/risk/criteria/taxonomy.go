// internal/risk/criteria/taxonomy.go
package criteria

import (
	"fmt"

	"psychosocial-workers/internal/models"
)

// TaxonomyVersion identifies the question-to-category table below. Bump it
// whenever the table changes; analyses record the version they were built with.
const TaxonomyVersion = "2024.1"

const (
	MinAnswer = 1.0
	MaxAnswer = 5.0

	// ExpectedQuestionsPerCategory is the completeness denominator for confidence.
	ExpectedQuestionsPerCategory = 5

	// FactorGate is the category mean (1..5 scale) at which factors are present.
	FactorGate = 3.5
)

type categoryDefinition struct {
	Category  models.Category
	Label     string
	Questions []string
	Factors   []string
}

var taxonomy = []categoryDefinition{
	{
		Category:  models.CategoryWorkOrganization,
		Label:     "Organização do trabalho",
		Questions: questionRange(1, 5),
		Factors:   []string{"sobrecarga de trabalho", "pressão por prazos", "baixa autonomia sobre o trabalho"},
	},
	{
		Category:  models.CategoryEnvironmentalCondition,
		Label:     "Condições ambientais",
		Questions: questionRange(6, 10),
		Factors:   []string{"condições físicas inadequadas", "falta de recursos e equipamentos", "exposição a ruído e desconforto"},
	},
	{
		Category:  models.CategorySocioProfessional,
		Label:     "Relações socioprofissionais",
		Questions: questionRange(11, 15),
		Factors:   []string{"conflitos interpessoais", "falta de apoio da liderança", "comunicação deficiente"},
	},
	{
		Category:  models.CategoryRecognitionGrowth,
		Label:     "Reconhecimento e crescimento",
		Questions: questionRange(16, 20),
		Factors:   []string{"falta de reconhecimento", "poucas oportunidades de crescimento", "percepção de injustiça salarial"},
	},
	{
		Category:  models.CategoryWorkLifeBalance,
		Label:     "Elo trabalho e vida social",
		Questions: questionRange(21, 25),
		Factors:   []string{"desequilíbrio entre trabalho e vida pessoal", "jornadas extensas", "dificuldade de desconexão"},
	},
}

var questionIndex = buildQuestionIndex()

func questionRange(from, to int) []string {
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("q%d", i))
	}
	return out
}

func buildQuestionIndex() map[string]models.Category {
	idx := make(map[string]models.Category)
	for _, def := range taxonomy {
		for _, q := range def.Questions {
			idx[q] = def.Category
		}
	}
	return idx
}

// Categories returns the five categories in taxonomy order.
func Categories() []models.Category {
	out := make([]models.Category, len(taxonomy))
	for i, def := range taxonomy {
		out[i] = def.Category
	}
	return out
}

// CategoryOf maps a question id to its category.
func CategoryOf(questionID string) (models.Category, bool) {
	c, ok := questionIndex[questionID]
	return c, ok
}

// Questions returns the question ids of a category.
func Questions(c models.Category) []string {
	if def, ok := definition(c); ok {
		return append([]string(nil), def.Questions...)
	}
	return nil
}

// Factors returns the contributing-factor labels of a category.
func Factors(c models.Category) []string {
	if def, ok := definition(c); ok {
		return append([]string(nil), def.Factors...)
	}
	return nil
}

// Label returns the display name of a category.
func Label(c models.Category) string {
	if def, ok := definition(c); ok {
		return def.Label
	}
	return string(c)
}

// Partition splits raw answers by category. Unknown question ids are dropped.
// Every category is present in the result, possibly with no values.
func Partition(answers map[string]float64) map[models.Category][]float64 {
	out := make(map[models.Category][]float64, len(taxonomy))
	for _, def := range taxonomy {
		values := make([]float64, 0, len(def.Questions))
		for _, q := range def.Questions {
			if v, ok := answers[q]; ok {
				values = append(values, v)
			}
		}
		out[def.Category] = values
	}
	return out
}

func definition(c models.Category) (categoryDefinition, bool) {
	for _, def := range taxonomy {
		if def.Category == c {
			return def, true
		}
	}
	return categoryDefinition{}, false
}

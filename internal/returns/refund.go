package returns

import (
	"math"

	"github.com/shopspring/decimal"

	"returnbox_back_end/internal/models"
)

// ConditionSet : jeu d'états d'article proposé au client, choisi par configuration
type ConditionSet string

const (
	ConditionSetGrade     ConditionSet = "grade"     // new, like_new, good, fair, poor
	ConditionSetPackaging ConditionSet = "packaging" // sealed, opened, defective
)

type Condition struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Percentage float64 `json:"percentage"`
}

// Tables fixes utilisées tant que le marchand n'a pas défini ses propres politiques
var conditionTables = map[ConditionSet][]Condition{
	ConditionSetGrade: {
		{ID: "new", Label: "Neuf avec étiquettes", Percentage: 100},
		{ID: "like_new", Label: "Comme neuf", Percentage: 90},
		{ID: "good", Label: "Bon état", Percentage: 75},
		{ID: "fair", Label: "État correct", Percentage: 50},
		{ID: "poor", Label: "Usé", Percentage: 25},
	},
	ConditionSetPackaging: {
		{ID: "sealed", Label: "Emballage scellé", Percentage: 100},
		{ID: "opened", Label: "Emballage ouvert", Percentage: 80},
		{ID: "defective", Label: "Défectueux", Percentage: 100},
	},
}

// Conditions retourne les états connus du jeu, dans l'ordre d'affichage
func (s ConditionSet) Conditions() []Condition {
	out := make([]Condition, len(conditionTables[s]))
	copy(out, conditionTables[s])
	return out
}

func (s ConditionSet) Has(condition string) bool {
	for _, c := range conditionTables[s] {
		if c.ID == condition {
			return true
		}
	}
	return false
}

// FixedPolicies convertit la table fixe en politiques pour un marchand
func (s ConditionSet) FixedPolicies(merchantID string) []models.RefundPolicy {
	table := conditionTables[s]
	policies := make([]models.RefundPolicy, 0, len(table))
	for _, c := range table {
		policies = append(policies, models.RefundPolicy{
			MerchantID:       merchantID,
			ItemCondition:    c.ID,
			RefundPercentage: c.Percentage,
			Description:      c.Label,
		})
	}
	return policies
}

// EffectivePolicies : les politiques du marchand si elles existent, sinon la table fixe.
// On ne mélange jamais les deux.
func (s ConditionSet) EffectivePolicies(merchantID string, stored []models.RefundPolicy) []models.RefundPolicy {
	if len(stored) > 0 {
		return stored
	}
	return s.FixedPolicies(merchantID)
}

// LookupPolicy cherche la politique qui couvre l'état demandé
func LookupPolicy(condition string, policies []models.RefundPolicy) (models.RefundPolicy, bool) {
	for _, p := range policies {
		if p.ItemCondition == condition {
			return p, true
		}
	}
	return models.RefundPolicy{}, false
}

// EstimateRefund calcule price * pourcentage / 100 arrondi au centime (demi vers le haut).
// Un état sans politique donne 0, jamais un pourcentage par défaut.
func EstimateRefund(price float64, condition string, policies []models.RefundPolicy) float64 {
	policy, ok := LookupPolicy(condition, policies)
	if !ok || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0
	}

	amount := decimal.NewFromFloat(price).
		Mul(decimal.NewFromFloat(policy.RefundPercentage)).
		Div(decimal.NewFromInt(100)).
		Round(2)

	f, _ := amount.Float64()
	return f
}

// Estimate produit la réponse complète du calculateur (aperçu en direct côté client)
func Estimate(price float64, condition string, policies []models.RefundPolicy) models.RefundEstimate {
	est := models.RefundEstimate{Condition: condition, Price: price}
	if policy, ok := LookupPolicy(condition, policies); ok {
		est.Covered = true
		est.Percentage = policy.RefundPercentage
		est.Amount = EstimateRefund(price, condition, policies)
	}
	return est
}

// ValidatePolicy vérifie une politique saisie par un marchand
func (s ConditionSet) ValidatePolicy(p models.RefundPolicy) error {
	fields := map[string]string{}
	if !s.Has(p.ItemCondition) {
		fields["item_condition"] = "état inconnu pour ce jeu de conditions"
	}
	if math.IsNaN(p.RefundPercentage) || p.RefundPercentage < 0 || p.RefundPercentage > 100 {
		fields["refund_percentage"] = "le pourcentage doit être compris entre 0 et 100"
	}
	if len(p.Description) > 512 {
		fields["description"] = "description trop longue"
	}
	if len(fields) > 0 {
		return validationError("validatePolicy", fields)
	}
	return nil
}

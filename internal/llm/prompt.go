package llm

import (
	"encoding/json"
	"strings"
)

// extractionInstructions is sent verbatim before every chunk.
var extractionInstructions = []string{
	"Tu es un assistant fiscal spécialisé dans la déclaration de revenus française 2025 (revenus 2024).",
	"À partir du texte ci-dessous, identifie tous les montants à reporter dans les formulaires fiscaux (2042, 2042-C, 2042-C-PRO, 2044, 2047, 2086, 3916...).",
	"Réponds UNIQUEMENT avec un objet JSON, sans texte autour.",
	"Chaque clé de premier niveau est l'identifiant d'un formulaire; sa valeur associe chaque case (code) à son montant, par exemple {\"2042\": {\"1AJ\": 12000}}.",
	"Ajoute une clé \"summary\": un tableau d'objets {\"form\", \"code\", \"description\", \"amount\"} reprenant chaque case trouvée.",
	"Les montants sont des nombres sans symbole monétaire ni séparateur de milliers.",
	"Si une case est mentionnée sans montant lisible, utilise la chaîne \"MISSING\" comme montant.",
	"N'invente aucune case ni aucun montant absent du texte.",
}

// BuildExtractionPrompt interpolates chunk into the fixed instruction template.
func BuildExtractionPrompt(chunk string) string {
	var b strings.Builder
	b.WriteString(strings.Join(extractionInstructions, "\n"))
	b.WriteString("\n\nFormat attendu pour chaque entrée de \"summary\" (JSON Schema):\n")
	b.WriteString(mustJSON(BuildSummaryRecordSchema()))
	b.WriteString("\n\nTexte du document:\n\"\"\"\n")
	b.WriteString(chunk)
	b.WriteString("\n\"\"\"")
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

package intent

// Section is one navigable area of the dashboard. Keywords are the spoken
// forms users reach it by; Description feeds the classifier prompt.
type Section struct {
	ID          string
	Label       string
	Keywords    []string
	Description string
}

// SectionsForRole returns the navigation sections visible to the given
// dashboard role. Unknown roles fall back to the president's sections.
func SectionsForRole(role string) []Section {
	if s, ok := sectionsByRole[role]; ok {
		return s
	}
	return sectionsByRole["president"]
}

var sectionsByRole = map[string][]Section{
	"president": {
		{
			ID:          "dashboard",
			Label:       "Tableau de Bord",
			Keywords:    []string{"tableau de bord", "accueil", "résumé", "vue d'ensemble", "dashboard"},
			Description: "Vue principale avec les indicateurs clés, graphiques et résumé des activités.",
		},
		{
			ID:          "documents",
			Label:       "Documents",
			Keywords:    []string{"documents", "ged", "fichiers", "dossiers", "archives"},
			Description: "Gestion électronique des documents, courriers numérisés, et archives.",
		},
		{
			ID:          "courriers",
			Label:       "Courriers",
			Keywords:    []string{"courriers", "courrier", "messages", "boîte de réception", "mails", "correspondance"},
			Description: "Boîte de réception des courriers et messages officiels.",
		},
		{
			ID:          "iasted",
			Label:       "iAsted",
			Keywords:    []string{"iasted", "assistant", "ia", "intelligence artificielle", "aide"},
			Description: "Interface de l'assistant intelligent iAsted.",
		},
		{
			ID:          "conseil-ministres",
			Label:       "Conseil des Ministres",
			Keywords:    []string{"conseil des ministres", "conseil", "ministres", "réunion"},
			Description: "Gestion des ordres du jour et comptes rendus des conseils des ministres.",
		},
		{
			ID:          "ministeres",
			Label:       "Ministères",
			Keywords:    []string{"ministères", "gouvernement", "départements"},
			Description: "Suivi des activités et performances des différents ministères.",
		},
		{
			ID:          "decrets",
			Label:       "Décrets & Lois",
			Keywords:    []string{"décrets", "lois", "législation", "juridique", "textes"},
			Description: "Consultation et signature des décrets et textes de loi.",
		},
		{
			ID:          "nominations",
			Label:       "Nominations",
			Keywords:    []string{"nominations", "nommer", "postes"},
			Description: "Gestion des nominations aux postes officiels.",
		},
		{
			ID:          "budget",
			Label:       "Budget de l'État",
			Keywords:    []string{"budget", "finances", "économie", "dépenses"},
			Description: "Suivi du budget de l'État et des indicateurs économiques.",
		},
		{
			ID:          "indicateurs",
			Label:       "Indicateurs Nationaux",
			Keywords:    []string{"indicateurs", "kpi", "statistiques", "données"},
			Description: "Tableau de bord des indicateurs de performance nationale.",
		},
		{
			ID:          "sante",
			Label:       "Santé",
			Keywords:    []string{"santé", "hôpitaux", "médical", "soins"},
			Description: "Suivi du système de santé et des infrastructures médicales.",
		},
		{
			ID:          "chantiers",
			Label:       "Chantiers",
			Keywords:    []string{"chantiers", "travaux", "infrastructures", "construction"},
			Description: "Suivi des chantiers et infrastructures en cours.",
		},
	},
	"admin": {
		{
			ID:          "dashboard",
			Label:       "Tableau de Bord",
			Keywords:    []string{"tableau de bord", "accueil", "résumé", "vue d'ensemble", "dashboard", "statistiques"},
			Description: "Vue d'ensemble du système avec statistiques globales.",
		},
		{
			ID:          "users",
			Label:       "Utilisateurs",
			Keywords:    []string{"utilisateurs", "comptes", "gestion utilisateurs", "users"},
			Description: "Gestion complète des utilisateurs et de leurs rôles.",
		},
		{
			ID:          "ai",
			Label:       "IA & Voix",
			Keywords:    []string{"ia", "intelligence artificielle", "voix", "iasted", "configuration ia"},
			Description: "Configuration de l'IA et des paramètres vocaux.",
		},
		{
			ID:          "knowledge",
			Label:       "Connaissances",
			Keywords:    []string{"connaissances", "base de connaissances", "knowledge base", "données"},
			Description: "Gestion de la base de connaissances système.",
		},
		{
			ID:          "audit",
			Label:       "Audit & Logs",
			Keywords:    []string{"audit", "logs", "journaux", "historique", "traçabilité"},
			Description: "Consultation des logs d'audit et de l'historique système.",
		},
		{
			ID:          "config",
			Label:       "Configuration",
			Keywords:    []string{"configuration", "paramètres", "settings", "config système"},
			Description: "Configuration globale du système.",
		},
	},
}

package topics

const (
	// Auditoria do painel administrativo
	AdminDecisions = "betref_admin_decisions"
)

package mode

import "strings"

// Limits are the per-deployment knobs of the built-in profiles.
type Limits struct {
	AcademicMaxResults int
	LegalMaxResults    int
}

// DefaultLimits matches the full retrieval design.
var DefaultLimits = Limits{
	AcademicMaxResults: 12,
	LegalMaxResults:    4,
}

// academicDomains are favoured by the academic filter.
var academicDomains = []string{
	"edu",
	"sciencedirect.com",
	"arxiv.org",
	"scielo.org",
	"redalyc.org",
	"ncbi.nlm.nih.gov",
	"springer.com",
}

// academicExcluded are aggregators whose content is not citable.
var academicExcluded = []string{
	"monografias.com",
	"rincondelvago.com",
}

// legalDomains is the allowlist of Colombian legal and government sources.
var legalDomains = []string{
	"corteconstitucional.gov.co",
	"cortesuprema.gov.co",
	"consejodeestado.gov.co",
	"secretariasenado.gov.co",
	"funcionpublica.gov.co",
	"suin-juriscol.gov.co",
}

// AcademicSiteFilter is the primary academic filter expression.
func AcademicSiteFilter() string {
	parts := []string{`(filetype:pdf "references")`}
	for _, d := range academicDomains {
		parts = append(parts, "site:"+d)
	}
	filter := strings.Join(parts, " OR ")
	for _, d := range academicExcluded {
		filter += " -site:" + d
	}
	return filter
}

// LegalSiteFilter is the legal allowlist filter expression.
func LegalSiteFilter() string {
	parts := make([]string, 0, len(legalDomains))
	for _, d := range legalDomains {
		parts = append(parts, "site:"+d)
	}
	return strings.Join(parts, " OR ")
}

// AcademicProfile returns the research-assistant profile.
func AcademicProfile(maxResults int) Profile {
	if maxResults <= 0 {
		maxResults = DefaultLimits.AcademicMaxResults
	}
	return Profile{
		Mode:         Academic,
		QueryTask:    "Genera una búsqueda corta para Google Scholar.",
		DefaultQuery: "science research paper",

		SiteFilter:    AcademicSiteFilter(),
		RelaxedFilter: `"research paper" filetype:pdf`,
		MaxResults:    maxResults,
		SnippetLimit:  500,

		SourceLabel:     "FUENTE ACADÉMICA",
		UntitledSource:  "Documento Académico",
		UnreachableText: "No pude conectar a las bases de datos académicas. Verifica tu conexión.",
		NoResultsText:   "No encontré papers relevantes para esta consulta específica.",

		Persona: `Rol: Eres "Titi", un asistente de investigación científica avanzado. Tu nombre rinde homenaje al tití cabeciblanco.
Tu misión es ayudar a redactar documentos con altísimo rigor académico pero siendo directo y útil.`,
		EvidenceHeading:  "INVESTIGACIÓN REALIZADA (EVIDENCIA)",
		EmptyInstruction: "(Si la orden está vacía, analiza y mejora el texto académicamente).",
		IncludeHistory:   true,
		Rules: []string{
			"Cumple la orden del usuario usando la evidencia encontrada.",
			"CITA SIEMPRE las fuentes como [1], [2]. Sin citas, no es ciencia.",
			"Mantén un tono académico formal, pero puedes ser muy directo.",
			`No menciones "soy una IA", actúa como un colega investigador experto.`,
			"Devuelve el texto listo para pegar en la tesis.",
		},
	}
}

// LegalProfile returns the legal-expert profile. Legal retrieval never widens
// beyond the allowlist.
func LegalProfile(maxResults int) Profile {
	if maxResults <= 0 {
		maxResults = DefaultLimits.LegalMaxResults
	}
	return Profile{
		Mode:         Legal,
		QueryTask:    "Genera una búsqueda corta de jurisprudencia colombiana. La búsqueda debe quedar en español.",
		DefaultQuery: "jurisprudencia Corte Constitucional Colombia",

		SiteFilter:   LegalSiteFilter(),
		MaxResults:   maxResults,
		SnippetLimit: 600,
		Language:     "es",
		Region:       "co-es",

		SourceLabel:     "FUENTE JURÍDICA",
		UntitledSource:  "Documento Jurídico",
		UnreachableText: "No pude conectar a las fuentes jurídicas oficiales. Verifica tu conexión.",
		NoResultsText:   "No encontré jurisprudencia ni normativa relevante en las fuentes oficiales para esta consulta.",

		Persona: `Rol: Eres "Titi", un experto jurídico en derecho colombiano.
Tu misión es redactar conceptos y argumentos jurídicos sólidos, fundados únicamente en fuentes oficiales.`,
		EvidenceHeading:  "FUENTES JURÍDICAS CONSULTADAS (EVIDENCIA)",
		EmptyInstruction: "(Si la orden está vacía, analiza jurídicamente el texto y señala la normativa aplicable).",
		Rules: []string{
			"Cumple la orden del usuario usando únicamente la evidencia jurídica encontrada.",
			"Cita las providencias y actos por su identificador formal (por ejemplo, Sentencia T-760 de 2008 o Ley 1437 de 2011) junto con la fuente [n].",
			"Usa terminología jurídica precisa.",
			"Sé conciso y argumentativo.",
			`No menciones "soy una IA", actúa como un abogado experto.`,
		},
	}
}

// Builtin returns a registry with both built-in profiles.
func Builtin(l Limits) *Registry {
	return NewRegistry(
		AcademicProfile(l.AcademicMaxResults),
		LegalProfile(l.LegalMaxResults),
	)
}

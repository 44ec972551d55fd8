package recognition

import "strings"

// Language is a recognition language offered to the user.
type Language struct {
	Code  string
	Label string
}

// Languages lists the languages offered for recognition. Platforms may accept
// other tags as well.
var Languages = []Language{
	{Code: "es-ES", Label: "Español (España)"},
	{Code: "es-MX", Label: "Español (México)"},
	{Code: "es-AR", Label: "Español (Argentina)"},
	{Code: "en-US", Label: "English (US)"},
	{Code: "en-GB", Label: "English (UK)"},
	{Code: "fr-FR", Label: "Français"},
	{Code: "de-DE", Label: "Deutsch"},
	{Code: "pt-BR", Label: "Português (Brasil)"},
	{Code: "it-IT", Label: "Italiano"},
	{Code: "ja-JP", Label: "日本語"},
	{Code: "zh-CN", Label: "中文 (简体)"},
}

// LookupLanguage finds code in Languages, ignoring case.
func LookupLanguage(code string) (Language, bool) {
	for _, l := range Languages {
		if strings.EqualFold(l.Code, code) {
			return l, true
		}
	}
	return Language{}, false
}

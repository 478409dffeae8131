package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/disambiguate.txt
	disambiguateRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	System       string
	Disambiguate string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		System:       strings.TrimSpace(systemRaw),
		Disambiguate: strings.TrimSpace(disambiguateRaw),
	}
}
